package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-credits/core"
)

func TestRegistryQueries_Delegate(t *testing.T) {
	owner := "alice"
	rate := "25"
	reader := stubRegistryReader{
		settings: core.RegistrySettings{Name: "Carbon", Symbol: "CCO2", TotalSupply: 2, TokenID: 2},
		credit:   core.Credit{ID: 1, TypeOfCredit: "forestry", Quantity: 5},
		owner:    core.CreditOwner{TokenID: 1, Owner: &owner},
		rate:     core.CreditRate{TokenID: 1, Rate: &rate},
		credits:  []core.Credit{{ID: 0}, {ID: 1}},
	}
	ctx := context.Background()

	settings, err := NewGetSettingsQuery(reader).Query(ctx, GetSettingsMessage{})
	if err != nil {
		t.Fatalf("query settings: %v", err)
	}
	if settings.TotalSupply != 2 {
		t.Fatalf("unexpected settings: %#v", settings)
	}

	credit, err := NewGetCreditQuery(reader).Query(ctx, GetCreditMessage{TokenID: 1})
	if err != nil {
		t.Fatalf("query credit: %v", err)
	}
	if credit.Quantity != 5 {
		t.Fatalf("unexpected credit: %#v", credit)
	}

	gotOwner, err := NewGetCreditOwnerQuery(reader).Query(ctx, GetCreditOwnerMessage{TokenID: 1})
	if err != nil {
		t.Fatalf("query owner: %v", err)
	}
	if gotOwner.Owner == nil || *gotOwner.Owner != "alice" {
		t.Fatalf("unexpected owner: %#v", gotOwner)
	}

	gotRate, err := NewGetRateQuery(reader).Query(ctx, GetRateMessage{TokenID: 1})
	if err != nil {
		t.Fatalf("query rate: %v", err)
	}
	if gotRate.Rate == nil || *gotRate.Rate != "25" {
		t.Fatalf("unexpected rate: %#v", gotRate)
	}

	credits, err := NewGetCreditsByOwnerQuery(reader).Query(ctx, GetCreditsByOwnerMessage{Owner: "alice"})
	if err != nil {
		t.Fatalf("query credits by owner: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("expected 2 credits, got %d", len(credits))
	}
}

func TestListPurchasesQuery_PassesFilter(t *testing.T) {
	reader := stubMarketplaceReader{
		listFn: func(_ context.Context, filter core.PurchaseFilter) ([]core.Purchase, error) {
			if filter.Buyer != "bob" || filter.Limit != 10 {
				t.Fatalf("unexpected filter: %#v", filter)
			}
			return []core.Purchase{{TokenID: 3, Buyer: "bob", Seller: "alice", Price: "2.00000000"}}, nil
		},
	}
	purchases, err := NewListPurchasesQuery(reader).Query(context.Background(), ListPurchasesMessage{
		Filter: core.PurchaseFilter{Buyer: "bob", Limit: 10},
	})
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(purchases) != 1 || purchases[0].TokenID != 3 {
		t.Fatalf("unexpected purchases: %#v", purchases)
	}

	settings, err := NewGetMarketSettingsQuery(reader).Query(context.Background(), GetMarketSettingsMessage{})
	if err != nil {
		t.Fatalf("market settings: %v", err)
	}
	if settings.CarbonCreditNFT != core.DefaultRegistryContract {
		t.Fatalf("unexpected market settings: %#v", settings)
	}
}

type stubRegistryReader struct {
	settings core.RegistrySettings
	credit   core.Credit
	owner    core.CreditOwner
	rate     core.CreditRate
	credits  []core.Credit
}

func (s stubRegistryReader) GetSettings(context.Context) (core.RegistrySettings, error) {
	return s.settings, nil
}

func (s stubRegistryReader) GetCreditOwner(context.Context, int64) (core.CreditOwner, error) {
	return s.owner, nil
}

func (s stubRegistryReader) OwnerOf(context.Context, int64) (core.CreditOwner, error) {
	return s.owner, nil
}

func (s stubRegistryReader) GetCredit(context.Context, int64) (core.Credit, error) {
	return s.credit, nil
}

func (s stubRegistryReader) GetCreditsByOwner(context.Context, string) ([]core.Credit, error) {
	return s.credits, nil
}

func (s stubRegistryReader) GetRate(context.Context, int64) (core.CreditRate, error) {
	return s.rate, nil
}

type stubMarketplaceReader struct {
	listFn func(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error)
}

func (s stubMarketplaceReader) GetMarketSettings(context.Context) (core.MarketSettings, error) {
	return core.MarketSettings{CarbonCreditNFT: core.DefaultRegistryContract, Owner: "market-owner"}, nil
}

func (s stubMarketplaceReader) ListPurchases(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}
