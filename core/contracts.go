package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Store runs fn inside a single serialized transaction. Every write made
// through tx commits together when fn returns nil and is discarded otherwise.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Settings() SettingsRepository
	Credits() CreditRepository
	Ownerships() OwnershipRepository
	Minters() MinterRepository
	Rates() RateRepository
	Market() MarketSettingsRepository
	Purchases() PurchaseRepository
	Balances() BalanceLedger
	Events() EventSink
}

type SettingsRepository interface {
	Get(ctx context.Context) (RegistrySettings, bool, error)
	Insert(ctx context.Context, settings RegistrySettings) error
	Update(ctx context.Context, settings RegistrySettings) error
}

type CreditRepository interface {
	Get(ctx context.Context, id int64) (Credit, bool, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Credit, error)
	Insert(ctx context.Context, credit Credit) error
	Update(ctx context.Context, credit Credit) error
}

type OwnershipRepository interface {
	Get(ctx context.Context, id int64) (Ownership, bool, error)
	ListByAccount(ctx context.Context, account string) ([]Ownership, error)
	Insert(ctx context.Context, ownership Ownership) error
	Update(ctx context.Context, ownership Ownership) error
	Delete(ctx context.Context, id int64) error
}

type MinterRepository interface {
	Exists(ctx context.Context, account string) (bool, error)
	Insert(ctx context.Context, minter AuthorizedMinter) error
	Delete(ctx context.Context, account string) error
}

type RateRepository interface {
	Get(ctx context.Context, id int64) (TokenRate, bool, error)
	Upsert(ctx context.Context, rate TokenRate) error
}

type MarketSettingsRepository interface {
	Get(ctx context.Context) (MarketSettings, bool, error)
	Insert(ctx context.Context, settings MarketSettings) error
}

type PurchaseRepository interface {
	Insert(ctx context.Context, purchase Purchase) error
	List(ctx context.Context, filter PurchaseFilter) ([]Purchase, error)
}

// BalanceLedger holds settlement asset balances. Debits beyond the available
// balance fail with ErrInsufficientFunds.
type BalanceLedger interface {
	Balance(ctx context.Context, symbol string, account string) (decimal.Decimal, error)
	Spendable(ctx context.Context, symbol string, account string) (decimal.Decimal, error)
	Transfer(ctx context.Context, symbol string, from string, to string, amount decimal.Decimal) error
	Credit(ctx context.Context, symbol string, account string, amount decimal.Decimal) error
	SetStake(ctx context.Context, symbol string, account string, stake decimal.Decimal, pendingUnstake decimal.Decimal) error
}

type EventSink interface {
	Enqueue(ctx context.Context, event Event) error
}

// RateReader serves token rates outside of a transaction, usually from a cache.
type RateReader interface {
	GetRate(ctx context.Context, tokenID int64) (TokenRate, bool, error)
}

type RateInvalidator interface {
	InvalidateRate(ctx context.Context, tokenID int64)
}

// CreditContract is what the marketplace needs from a registry to settle a
// purchase inside the caller's transaction.
type CreditContract interface {
	Name() string
	CreditInTx(ctx context.Context, tx Tx, tokenID int64) (Credit, bool, error)
	OwnerOfInTx(ctx context.Context, tx Tx, tokenID int64) (string, bool, error)
	TransferInTx(ctx context.Context, tx Tx, req TransferRequest) error
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// RoutedHandler is a handler selected for one event, carrying the name it
// was registered under.
type RoutedHandler struct {
	Name    string
	Handler EventHandler
}

// HandlerRegistry routes outbox events to named handlers. Register
// subscribes a handler to every event.
type HandlerRegistry interface {
	Register(name string, handler EventHandler)
	Subscribe(name string, subscription EventSubscription, handler EventHandler)
	Route(event Event) []RoutedHandler
}

type OutboxStore interface {
	ClaimBatch(ctx context.Context, limit int) ([]Event, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
	// Unrouted counts claimed events no handler subscribed to. They are
	// acked without delivery.
	Unrouted int
}

type Dispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error)
}

type RegistryCommands interface {
	Initialize(ctx context.Context, req InitializeRegistryRequest) error
	Mint(ctx context.Context, req MintRequest) (MintResult, error)
	Transfer(ctx context.Context, req TransferRequest) error
	Retire(ctx context.Context, req RetireRequest) error
	AddMinter(ctx context.Context, req MinterRequest) error
	RemoveMinter(ctx context.Context, req MinterRequest) error
	SetRate(ctx context.Context, req SetRateRequest) error
	ReduceQuantity(ctx context.Context, req ReduceQuantityRequest) error
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error)
}

type RegistryQueries interface {
	GetSettings(ctx context.Context) (RegistrySettings, error)
	GetCreditOwner(ctx context.Context, tokenID int64) (CreditOwner, error)
	OwnerOf(ctx context.Context, tokenID int64) (CreditOwner, error)
	GetCredit(ctx context.Context, tokenID int64) (Credit, error)
	GetCreditsByOwner(ctx context.Context, owner string) ([]Credit, error)
	GetRate(ctx context.Context, tokenID int64) (CreditRate, error)
}

type MarketplaceCommands interface {
	Initialize(ctx context.Context, req InitializeMarketplaceRequest) error
	PurchaseToken(ctx context.Context, req PurchaseRequest) (Purchase, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error)
}

type MarketplaceQueries interface {
	GetMarketSettings(ctx context.Context) (MarketSettings, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error)
}
