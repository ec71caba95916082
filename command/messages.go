package command

import "github.com/goliatone/go-credits/core"

const (
	TypeInitializeRegistry    = "credits.command.registry.initialize"
	TypeMint                  = "credits.command.registry.mint"
	TypeTransfer              = "credits.command.registry.transfer"
	TypeRetire                = "credits.command.registry.retire"
	TypeAddMinter             = "credits.command.registry.minter.add"
	TypeRemoveMinter          = "credits.command.registry.minter.remove"
	TypeSetRate               = "credits.command.registry.rate.set"
	TypeReduceQuantity        = "credits.command.registry.quantity.reduce"
	TypeRegistryWithdraw      = "credits.command.registry.withdraw"
	TypeInitializeMarketplace = "credits.command.marketplace.initialize"
	TypePurchaseToken         = "credits.command.marketplace.purchase"
	TypeMarketplaceWithdraw   = "credits.command.marketplace.withdraw"
)

// Every message carries the submitting account. Caller may be left empty
// when the context already holds a core.CallContext.

type InitializeRegistryMessage struct {
	Caller  string
	Request core.InitializeRegistryRequest
}

func (InitializeRegistryMessage) Type() string { return TypeInitializeRegistry }

func (m InitializeRegistryMessage) Validate() error {
	return nil
}

type MintMessage struct {
	Caller  string
	Request core.MintRequest
}

func (MintMessage) Type() string { return TypeMint }

func (m MintMessage) Validate() error {
	return m.Request.Validate()
}

type TransferMessage struct {
	Caller  string
	Request core.TransferRequest
}

func (TransferMessage) Type() string { return TypeTransfer }

func (m TransferMessage) Validate() error {
	return m.Request.Validate()
}

type RetireMessage struct {
	Caller  string
	Request core.RetireRequest
}

func (RetireMessage) Type() string { return TypeRetire }

func (m RetireMessage) Validate() error {
	return m.Request.Validate()
}

type AddMinterMessage struct {
	Caller  string
	Request core.MinterRequest
}

func (AddMinterMessage) Type() string { return TypeAddMinter }

func (m AddMinterMessage) Validate() error {
	return m.Request.Validate()
}

type RemoveMinterMessage struct {
	Caller  string
	Request core.MinterRequest
}

func (RemoveMinterMessage) Type() string { return TypeRemoveMinter }

func (m RemoveMinterMessage) Validate() error {
	return m.Request.Validate()
}

type SetRateMessage struct {
	Caller  string
	Request core.SetRateRequest
}

func (SetRateMessage) Type() string { return TypeSetRate }

func (m SetRateMessage) Validate() error {
	return m.Request.Validate()
}

type ReduceQuantityMessage struct {
	Caller  string
	Request core.ReduceQuantityRequest
}

func (ReduceQuantityMessage) Type() string { return TypeReduceQuantity }

func (m ReduceQuantityMessage) Validate() error {
	return m.Request.Validate()
}

type RegistryWithdrawMessage struct {
	Caller  string
	Request core.WithdrawRequest
}

func (RegistryWithdrawMessage) Type() string { return TypeRegistryWithdraw }

func (m RegistryWithdrawMessage) Validate() error {
	return m.Request.Validate()
}

type InitializeMarketplaceMessage struct {
	Caller  string
	Request core.InitializeMarketplaceRequest
}

func (InitializeMarketplaceMessage) Type() string { return TypeInitializeMarketplace }

func (m InitializeMarketplaceMessage) Validate() error {
	return nil
}

type PurchaseTokenMessage struct {
	Caller  string
	Request core.PurchaseRequest
}

func (PurchaseTokenMessage) Type() string { return TypePurchaseToken }

func (m PurchaseTokenMessage) Validate() error {
	return m.Request.Validate()
}

type MarketplaceWithdrawMessage struct {
	Caller  string
	Request core.WithdrawRequest
}

func (MarketplaceWithdrawMessage) Type() string { return TypeMarketplaceWithdraw }

func (m MarketplaceWithdrawMessage) Validate() error {
	return m.Request.Validate()
}
