package query

import (
	"strings"

	"github.com/goliatone/go-credits/core"
)

const (
	TypeGetSettings       = "credits.query.registry.settings"
	TypeGetCredit         = "credits.query.registry.credit"
	TypeGetCreditOwner    = "credits.query.registry.credit_owner"
	TypeGetRate           = "credits.query.registry.rate"
	TypeGetCreditsByOwner = "credits.query.registry.credits_by_owner"
	TypeGetMarketSettings = "credits.query.marketplace.settings"
	TypeListPurchases     = "credits.query.marketplace.purchases"
)

type GetSettingsMessage struct{}

func (GetSettingsMessage) Type() string { return TypeGetSettings }

func (GetSettingsMessage) Validate() error { return nil }

type GetCreditMessage struct {
	TokenID int64
}

func (GetCreditMessage) Type() string { return TypeGetCredit }

func (m GetCreditMessage) Validate() error {
	return validateTokenID(m.TokenID)
}

type GetCreditOwnerMessage struct {
	TokenID int64
}

func (GetCreditOwnerMessage) Type() string { return TypeGetCreditOwner }

func (m GetCreditOwnerMessage) Validate() error {
	return validateTokenID(m.TokenID)
}

type GetRateMessage struct {
	TokenID int64
}

func (GetRateMessage) Type() string { return TypeGetRate }

func (m GetRateMessage) Validate() error {
	return validateTokenID(m.TokenID)
}

type GetCreditsByOwnerMessage struct {
	Owner string
}

func (GetCreditsByOwnerMessage) Type() string { return TypeGetCreditsByOwner }

func (m GetCreditsByOwnerMessage) Validate() error {
	if strings.TrimSpace(m.Owner) == "" {
		return queryValidationError("owner", "owner is required")
	}
	return nil
}

type GetMarketSettingsMessage struct{}

func (GetMarketSettingsMessage) Type() string { return TypeGetMarketSettings }

func (GetMarketSettingsMessage) Validate() error { return nil }

type ListPurchasesMessage struct {
	Filter core.PurchaseFilter
}

func (ListPurchasesMessage) Type() string { return TypeListPurchases }

func (m ListPurchasesMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}

func validateTokenID(tokenID int64) error {
	if tokenID < 0 {
		return queryValidationError("token_id", "token id must be >= 0")
	}
	return nil
}
