package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRate is the per-credit rate assigned when a mint does not carry one.
	DefaultRate = "1000000000000000000"
	// DefaultSettlementSymbol is the fungible asset used for payments and withdrawals.
	DefaultSettlementSymbol = "SWAP.HIVE"
	// SettlementPrecision is the number of decimal places settlement amounts keep.
	SettlementPrecision int32 = 8

	DefaultRegistryContract    = "carbon_credit_nft"
	DefaultMarketplaceContract = "marketplace_contract"
)

const (
	EventCreditMinted      = "creditMinted"
	EventCreditTransferred = "creditTransferred"
	EventCreditRetired     = "creditRetired"
	EventMinterAdded       = "minterAdded"
	EventMinterRemoved     = "minterRemoved"
	EventRateSet           = "rateSet"
	EventQuantityReduced   = "quantityReduced"
	EventWithdrawal        = "withdrawal"
	EventNFTPurchased      = "nftPurchased"
)

// RegistrySettings is the registry singleton. TokenID is the next id to assign.
type RegistrySettings struct {
	Name        string
	Symbol      string
	TotalSupply int64
	TokenID     int64
	DefaultRate string
	Owner       string
}

type Credit struct {
	ID             int64
	TypeOfCredit   string
	Quantity       int64
	CertificateURI string
	ExpiryDate     int64
	Retired        bool
}

// Expired reports whether the credit's expiry date lies strictly before now.
func (c Credit) Expired(now time.Time) bool {
	return c.ExpiryDate < now.Unix()
}

type Ownership struct {
	ID      int64
	Account string
}

type AuthorizedMinter struct {
	Account string
}

type TokenRate struct {
	ID   int64
	Rate string
}

type Purchase struct {
	TokenID   int64
	Buyer     string
	Seller    string
	Price     string
	Timestamp int64
}

type MarketSettings struct {
	CarbonCreditNFT string
	Owner           string
}

type Event struct {
	ID         string
	Name       string
	Contract   string
	Caller     string
	OccurredAt time.Time
	Payload    map[string]any
	Metadata   map[string]any
}

type InitializeRegistryRequest struct {
	Name   string
	Symbol string
}

type MintRequest struct {
	To             string
	TypeOfCredit   string
	Quantity       int64
	CertificateURI string
	ExpiryDate     int64
	Rate           string
}

func (r MintRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return fieldError("to", "recipient is required")
	}
	if strings.TrimSpace(r.TypeOfCredit) == "" {
		return fieldError("typeofcredit", "credit type is required")
	}
	if r.Quantity < 0 {
		return fieldError("quantity", "quantity must not be negative")
	}
	if strings.TrimSpace(r.Rate) != "" {
		if _, err := parseAmount(r.Rate); err != nil {
			return fieldError("rate", err.Error())
		}
	}
	return nil
}

type MintResult struct {
	Credit Credit
	Owner  string
	Rate   string
}

type TransferRequest struct {
	To      string
	TokenID int64
}

func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return fieldError("to", "recipient is required")
	}
	return validateTokenID(r.TokenID)
}

type RetireRequest struct {
	TokenID int64
}

func (r RetireRequest) Validate() error {
	return validateTokenID(r.TokenID)
}

type MinterRequest struct {
	Minter string
}

func (r MinterRequest) Validate() error {
	if strings.TrimSpace(r.Minter) == "" {
		return fieldError("minter", "minter account is required")
	}
	return nil
}

type SetRateRequest struct {
	TokenID int64
	Rate    string
}

func (r SetRateRequest) Validate() error {
	if err := validateTokenID(r.TokenID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Rate) == "" {
		return fieldError("rate", "rate is required")
	}
	if _, err := parseAmount(r.Rate); err != nil {
		return fieldError("rate", err.Error())
	}
	return nil
}

type ReduceQuantityRequest struct {
	TokenID  int64
	Quantity int64
}

func (r ReduceQuantityRequest) Validate() error {
	if err := validateTokenID(r.TokenID); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return fieldError("quantity", "quantity must be positive")
	}
	return nil
}

// WithdrawRequest withdraws Amount, or the full balance when Amount is empty.
type WithdrawRequest struct {
	Amount string
}

func (r WithdrawRequest) Validate() error {
	if strings.TrimSpace(r.Amount) == "" {
		return nil
	}
	if _, err := parseSettlementAmount("amount", r.Amount); err != nil {
		return err
	}
	return nil
}

type WithdrawResult struct {
	From   string
	To     string
	Symbol string
	Amount string
}

type InitializeMarketplaceRequest struct {
	CarbonCreditNFT string
}

type PurchaseRequest struct {
	TokenID int64
	Price   string
}

func (r PurchaseRequest) Validate() error {
	if err := validateTokenID(r.TokenID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Price) == "" {
		return fieldError("price", "price is required")
	}
	if _, err := parseSettlementAmount("price", r.Price); err != nil {
		return err
	}
	return nil
}

type PurchaseFilter struct {
	Buyer   string
	Seller  string
	TokenID *int64
	Limit   int
	Offset  int
}

type CreditOwner struct {
	TokenID int64
	Owner   *string
}

type CreditRate struct {
	TokenID int64
	Rate    *string
}

func validateTokenID(tokenID int64) error {
	if tokenID < 0 {
		return fieldError("tokenId", "token id must not be negative")
	}
	return nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", value)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}

// parseSettlementAmount parses a positive amount rounded to settlement
// precision. Values that round to zero are rejected.
func parseSettlementAmount(field string, value string) (decimal.Decimal, error) {
	amount, err := parseAmount(value)
	if err != nil {
		return decimal.Zero, fieldError(field, err.Error())
	}
	amount = amount.Round(SettlementPrecision)
	if !amount.IsPositive() {
		return decimal.Zero, fieldError(field, fmt.Sprintf("%s must be at least %s", field, minimumSettlementAmount()))
	}
	return amount, nil
}

func minimumSettlementAmount() string {
	return decimal.New(1, -SettlementPrecision).StringFixed(SettlementPrecision)
}

// FormatAmount renders a settlement amount with the fixed settlement precision.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(SettlementPrecision)
}

func stringPtr(value string) *string {
	return &value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
