package credits

import (
	"fmt"

	creditscommand "github.com/goliatone/go-credits/command"
	"github.com/goliatone/go-credits/core"
	creditsquery "github.com/goliatone/go-credits/query"
)

type RegistryService interface {
	creditscommand.RegistryService
	creditsquery.RegistryReader
}

type MarketplaceService interface {
	creditscommand.MarketplaceService
	creditsquery.MarketplaceReader
}

type Commands struct {
	InitializeRegistry    *creditscommand.InitializeRegistryCommand
	Mint                  *creditscommand.MintCommand
	Transfer              *creditscommand.TransferCommand
	Retire                *creditscommand.RetireCommand
	AddMinter             *creditscommand.AddMinterCommand
	RemoveMinter          *creditscommand.RemoveMinterCommand
	SetRate               *creditscommand.SetRateCommand
	ReduceQuantity        *creditscommand.ReduceQuantityCommand
	RegistryWithdraw      *creditscommand.RegistryWithdrawCommand
	InitializeMarketplace *creditscommand.InitializeMarketplaceCommand
	PurchaseToken         *creditscommand.PurchaseTokenCommand
	MarketplaceWithdraw   *creditscommand.MarketplaceWithdrawCommand
}

type Queries struct {
	GetSettings       *creditsquery.GetSettingsQuery
	GetCredit         *creditsquery.GetCreditQuery
	GetCreditOwner    *creditsquery.GetCreditOwnerQuery
	GetRate           *creditsquery.GetRateQuery
	GetCreditsByOwner *creditsquery.GetCreditsByOwnerQuery
	GetMarketSettings *creditsquery.GetMarketSettingsQuery
	ListPurchases     *creditsquery.ListPurchasesQuery
}

type Facade struct {
	registry    RegistryService
	marketplace MarketplaceService
	commands    Commands
	queries     Queries
	bundles     map[string]any
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	hooks *ExtensionHooks
}

// WithExtensionHooks builds the registered command/query bundles against the
// new facade.
func WithExtensionHooks(hooks *ExtensionHooks) FacadeOption {
	return func(options *facadeOptions) {
		options.hooks = hooks
	}
}

func NewFacade(registry RegistryService, marketplace MarketplaceService, opts ...FacadeOption) (*Facade, error) {
	if registry == nil {
		return nil, fmt.Errorf("credits: registry service is required")
	}
	if marketplace == nil {
		return nil, fmt.Errorf("credits: marketplace service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{registry: registry, marketplace: marketplace}
	facade.commands = Commands{
		InitializeRegistry:    creditscommand.NewInitializeRegistryCommand(registry),
		Mint:                  creditscommand.NewMintCommand(registry),
		Transfer:              creditscommand.NewTransferCommand(registry),
		Retire:                creditscommand.NewRetireCommand(registry),
		AddMinter:             creditscommand.NewAddMinterCommand(registry),
		RemoveMinter:          creditscommand.NewRemoveMinterCommand(registry),
		SetRate:               creditscommand.NewSetRateCommand(registry),
		ReduceQuantity:        creditscommand.NewReduceQuantityCommand(registry),
		RegistryWithdraw:      creditscommand.NewRegistryWithdrawCommand(registry),
		InitializeMarketplace: creditscommand.NewInitializeMarketplaceCommand(marketplace),
		PurchaseToken:         creditscommand.NewPurchaseTokenCommand(marketplace),
		MarketplaceWithdraw:   creditscommand.NewMarketplaceWithdrawCommand(marketplace),
	}
	facade.queries = Queries{
		GetSettings:       creditsquery.NewGetSettingsQuery(registry),
		GetCredit:         creditsquery.NewGetCreditQuery(registry),
		GetCreditOwner:    creditsquery.NewGetCreditOwnerQuery(registry),
		GetRate:           creditsquery.NewGetRateQuery(registry),
		GetCreditsByOwner: creditsquery.NewGetCreditsByOwnerQuery(registry),
		GetMarketSettings: creditsquery.NewGetMarketSettingsQuery(marketplace),
		ListPurchases:     creditsquery.NewListPurchasesQuery(marketplace),
	}

	bundles, err := cfg.hooks.BuildCommandQueryBundles(facade)
	if err != nil {
		return nil, err
	}
	facade.bundles = bundles
	return facade, nil
}

// NewFacadeFromService wires a facade over the registry and marketplace of svc.
func NewFacadeFromService(svc *core.Service, opts ...FacadeOption) (*Facade, error) {
	if svc == nil {
		return nil, fmt.Errorf("credits: service is required")
	}
	return NewFacade(svc.Registry(), svc.Marketplace(), opts...)
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Registry() RegistryService {
	if f == nil {
		return nil
	}
	return f.registry
}

func (f *Facade) Marketplace() MarketplaceService {
	if f == nil {
		return nil
	}
	return f.marketplace
}

// Bundle returns the extension bundle registered under name.
func (f *Facade) Bundle(name string) (any, bool) {
	if f == nil {
		return nil, false
	}
	bundle, ok := f.bundles[name]
	return bundle, ok
}
