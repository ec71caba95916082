package sqlstore

import (
	"time"

	"github.com/goliatone/go-credits/core"
	"github.com/uptrace/bun"
)

type settingsRecord struct {
	bun.BaseModel `bun:"table:credits_settings,alias:cst"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Symbol      string    `bun:"symbol,notnull"`
	TotalSupply int64     `bun:"total_supply,notnull"`
	TokenID     int64     `bun:"token_id,notnull"`
	DefaultRate string    `bun:"default_rate,notnull"`
	Owner       string    `bun:"owner,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *settingsRecord) toDomain() core.RegistrySettings {
	return core.RegistrySettings{
		Name:        r.Name,
		Symbol:      r.Symbol,
		TotalSupply: r.TotalSupply,
		TokenID:     r.TokenID,
		DefaultRate: r.DefaultRate,
		Owner:       r.Owner,
	}
}

type creditRecord struct {
	bun.BaseModel `bun:"table:credits_credits,alias:ccr"`

	ID             string    `bun:"id,pk"`
	TokenID        int64     `bun:"token_id,notnull"`
	TypeOfCredit   string    `bun:"type_of_credit,notnull"`
	Quantity       int64     `bun:"quantity,notnull"`
	CertificateURI string    `bun:"certificate_uri,notnull"`
	ExpiryDate     int64     `bun:"expiry_date,notnull"`
	Retired        bool      `bun:"retired,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *creditRecord) toDomain() core.Credit {
	return core.Credit{
		ID:             r.TokenID,
		TypeOfCredit:   r.TypeOfCredit,
		Quantity:       r.Quantity,
		CertificateURI: r.CertificateURI,
		ExpiryDate:     r.ExpiryDate,
		Retired:        r.Retired,
	}
}

type ownershipRecord struct {
	bun.BaseModel `bun:"table:credits_ownerships,alias:cow"`

	ID        string    `bun:"id,pk"`
	TokenID   int64     `bun:"token_id,notnull"`
	Account   string    `bun:"account,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *ownershipRecord) toDomain() core.Ownership {
	return core.Ownership{ID: r.TokenID, Account: r.Account}
}

type minterRecord struct {
	bun.BaseModel `bun:"table:credits_minters,alias:cmi"`

	ID        string    `bun:"id,pk"`
	Account   string    `bun:"account,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type rateRecord struct {
	bun.BaseModel `bun:"table:credits_rates,alias:cra"`

	ID        string    `bun:"id,pk"`
	TokenID   int64     `bun:"token_id,notnull"`
	Rate      string    `bun:"rate,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *rateRecord) toDomain() core.TokenRate {
	return core.TokenRate{ID: r.TokenID, Rate: r.Rate}
}

type marketSettingsRecord struct {
	bun.BaseModel `bun:"table:credits_market_settings,alias:cms"`

	ID              string    `bun:"id,pk"`
	CarbonCreditNFT string    `bun:"carbon_credit_nft,notnull"`
	Owner           string    `bun:"owner,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *marketSettingsRecord) toDomain() core.MarketSettings {
	return core.MarketSettings{CarbonCreditNFT: r.CarbonCreditNFT, Owner: r.Owner}
}

type purchaseRecord struct {
	bun.BaseModel `bun:"table:credits_purchases,alias:cpu"`

	ID          string    `bun:"id,pk"`
	Sequence    int64     `bun:"sequence,notnull"`
	TokenID     int64     `bun:"token_id,notnull"`
	Buyer       string    `bun:"buyer,notnull"`
	Seller      string    `bun:"seller,notnull"`
	Price       string    `bun:"price,notnull"`
	PurchasedAt int64     `bun:"purchased_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *purchaseRecord) toDomain() core.Purchase {
	return core.Purchase{
		TokenID:   r.TokenID,
		Buyer:     r.Buyer,
		Seller:    r.Seller,
		Price:     r.Price,
		Timestamp: r.PurchasedAt,
	}
}

// balanceRecord keeps amounts as fixed-point strings so both dialects
// round-trip them without float conversion.
type balanceRecord struct {
	bun.BaseModel `bun:"table:credits_balances,alias:cba"`

	ID             string    `bun:"id,pk"`
	Symbol         string    `bun:"symbol,notnull"`
	Account        string    `bun:"account,notnull"`
	Balance        string    `bun:"balance,notnull"`
	Stake          string    `bun:"stake,notnull"`
	PendingUnstake string    `bun:"pending_unstake,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type outboxRecord struct {
	bun.BaseModel `bun:"table:credits_outbox,alias:cob"`

	ID          string         `bun:"id,pk"`
	Sequence    int64          `bun:"sequence,notnull"`
	EventID     string         `bun:"event_id,notnull"`
	EventName   string         `bun:"event_name,notnull"`
	Contract    string         `bun:"contract,notnull"`
	Caller      string         `bun:"caller,notnull"`
	Payload     map[string]any `bun:"payload,type:jsonb,notnull"`
	Metadata    map[string]any `bun:"metadata,type:jsonb,notnull"`
	Status      string         `bun:"status,notnull"`
	Attempts    int            `bun:"attempts,notnull"`
	NextAttempt *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError   string         `bun:"last_error,notnull"`
	OccurredAt  time.Time      `bun:"occurred_at,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
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
