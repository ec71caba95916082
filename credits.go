package credits

import "github.com/goliatone/go-credits/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Store = core.Store
type Tx = core.Tx
type OutboxStore = core.OutboxStore
type RateReader = core.RateReader
type RateInvalidator = core.RateInvalidator
type EventHandler = core.EventHandler
type EventHandlerFunc = core.EventHandlerFunc
type Event = core.Event
type EventSubscription = core.EventSubscription
type DeliveryError = core.DeliveryError

type CallContext = core.CallContext

type RegistrySettings = core.RegistrySettings
type Credit = core.Credit
type CreditOwner = core.CreditOwner
type CreditRate = core.CreditRate
type MarketSettings = core.MarketSettings
type Purchase = core.Purchase
type PurchaseFilter = core.PurchaseFilter

type InitializeRegistryRequest = core.InitializeRegistryRequest
type MintRequest = core.MintRequest
type MintResult = core.MintResult
type TransferRequest = core.TransferRequest
type RetireRequest = core.RetireRequest
type MinterRequest = core.MinterRequest
type SetRateRequest = core.SetRateRequest
type ReduceQuantityRequest = core.ReduceQuantityRequest
type WithdrawRequest = core.WithdrawRequest
type WithdrawResult = core.WithdrawResult
type InitializeMarketplaceRequest = core.InitializeMarketplaceRequest
type PurchaseRequest = core.PurchaseRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithStore           = core.WithStore
	WithRateReader      = core.WithRateReader
	WithRateInvalidator = core.WithRateInvalidator
	WithClock           = core.WithClock
	WithCaller          = core.WithCaller
	WithCallContext     = core.WithCallContext
	IsErrorCode         = core.IsErrorCode
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
