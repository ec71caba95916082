package query

import (
	"context"

	"github.com/goliatone/go-credits/core"
)

type RegistryReader interface {
	core.RegistryQueries
}

type MarketplaceReader interface {
	core.MarketplaceQueries
}

type GetSettingsQuery struct {
	reader RegistryReader
}

func NewGetSettingsQuery(reader RegistryReader) *GetSettingsQuery {
	return &GetSettingsQuery{reader: reader}
}

func (q *GetSettingsQuery) Query(ctx context.Context, _ GetSettingsMessage) (core.RegistrySettings, error) {
	if q == nil || q.reader == nil {
		return core.RegistrySettings{}, queryDependencyError("query: registry reader is required")
	}
	return q.reader.GetSettings(ctx)
}

type GetCreditQuery struct {
	reader RegistryReader
}

func NewGetCreditQuery(reader RegistryReader) *GetCreditQuery {
	return &GetCreditQuery{reader: reader}
}

func (q *GetCreditQuery) Query(ctx context.Context, msg GetCreditMessage) (core.Credit, error) {
	if q == nil || q.reader == nil {
		return core.Credit{}, queryDependencyError("query: registry reader is required")
	}
	return q.reader.GetCredit(ctx, msg.TokenID)
}

type GetCreditOwnerQuery struct {
	reader RegistryReader
}

func NewGetCreditOwnerQuery(reader RegistryReader) *GetCreditOwnerQuery {
	return &GetCreditOwnerQuery{reader: reader}
}

func (q *GetCreditOwnerQuery) Query(ctx context.Context, msg GetCreditOwnerMessage) (core.CreditOwner, error) {
	if q == nil || q.reader == nil {
		return core.CreditOwner{}, queryDependencyError("query: registry reader is required")
	}
	return q.reader.GetCreditOwner(ctx, msg.TokenID)
}

type GetRateQuery struct {
	reader RegistryReader
}

func NewGetRateQuery(reader RegistryReader) *GetRateQuery {
	return &GetRateQuery{reader: reader}
}

func (q *GetRateQuery) Query(ctx context.Context, msg GetRateMessage) (core.CreditRate, error) {
	if q == nil || q.reader == nil {
		return core.CreditRate{}, queryDependencyError("query: registry reader is required")
	}
	return q.reader.GetRate(ctx, msg.TokenID)
}

type GetCreditsByOwnerQuery struct {
	reader RegistryReader
}

func NewGetCreditsByOwnerQuery(reader RegistryReader) *GetCreditsByOwnerQuery {
	return &GetCreditsByOwnerQuery{reader: reader}
}

func (q *GetCreditsByOwnerQuery) Query(ctx context.Context, msg GetCreditsByOwnerMessage) ([]core.Credit, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: registry reader is required")
	}
	return q.reader.GetCreditsByOwner(ctx, msg.Owner)
}

type GetMarketSettingsQuery struct {
	reader MarketplaceReader
}

func NewGetMarketSettingsQuery(reader MarketplaceReader) *GetMarketSettingsQuery {
	return &GetMarketSettingsQuery{reader: reader}
}

func (q *GetMarketSettingsQuery) Query(ctx context.Context, _ GetMarketSettingsMessage) (core.MarketSettings, error) {
	if q == nil || q.reader == nil {
		return core.MarketSettings{}, queryDependencyError("query: marketplace reader is required")
	}
	return q.reader.GetMarketSettings(ctx)
}

type ListPurchasesQuery struct {
	reader MarketplaceReader
}

func NewListPurchasesQuery(reader MarketplaceReader) *ListPurchasesQuery {
	return &ListPurchasesQuery{reader: reader}
}

func (q *ListPurchasesQuery) Query(ctx context.Context, msg ListPurchasesMessage) ([]core.Purchase, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: marketplace reader is required")
	}
	return q.reader.ListPurchases(ctx, msg.Filter)
}
