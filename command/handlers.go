package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-credits/core"
)

type RegistryService interface {
	core.RegistryCommands
}

type MarketplaceService interface {
	core.MarketplaceCommands
}

type InitializeRegistryCommand struct {
	service RegistryService
}

func NewInitializeRegistryCommand(service RegistryService) *InitializeRegistryCommand {
	return &InitializeRegistryCommand{service: service}
}

func (c *InitializeRegistryCommand) Execute(ctx context.Context, msg InitializeRegistryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: registry service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.Initialize(ctx, msg.Request)
}

type MintCommand struct {
	service RegistryService
}

func NewMintCommand(service RegistryService) *MintCommand {
	return &MintCommand{service: service}
}

func (c *MintCommand) Execute(ctx context.Context, msg MintMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: mint service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	out, err := c.service.Mint(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TransferCommand struct {
	service RegistryService
}

func NewTransferCommand(service RegistryService) *TransferCommand {
	return &TransferCommand{service: service}
}

func (c *TransferCommand) Execute(ctx context.Context, msg TransferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transfer service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.Transfer(ctx, msg.Request)
}

type RetireCommand struct {
	service RegistryService
}

func NewRetireCommand(service RegistryService) *RetireCommand {
	return &RetireCommand{service: service}
}

func (c *RetireCommand) Execute(ctx context.Context, msg RetireMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: retire service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.Retire(ctx, msg.Request)
}

type AddMinterCommand struct {
	service RegistryService
}

func NewAddMinterCommand(service RegistryService) *AddMinterCommand {
	return &AddMinterCommand{service: service}
}

func (c *AddMinterCommand) Execute(ctx context.Context, msg AddMinterMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: add minter service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.AddMinter(ctx, msg.Request)
}

type RemoveMinterCommand struct {
	service RegistryService
}

func NewRemoveMinterCommand(service RegistryService) *RemoveMinterCommand {
	return &RemoveMinterCommand{service: service}
}

func (c *RemoveMinterCommand) Execute(ctx context.Context, msg RemoveMinterMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remove minter service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.RemoveMinter(ctx, msg.Request)
}

type SetRateCommand struct {
	service RegistryService
}

func NewSetRateCommand(service RegistryService) *SetRateCommand {
	return &SetRateCommand{service: service}
}

func (c *SetRateCommand) Execute(ctx context.Context, msg SetRateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: set rate service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.SetRate(ctx, msg.Request)
}

type ReduceQuantityCommand struct {
	service RegistryService
}

func NewReduceQuantityCommand(service RegistryService) *ReduceQuantityCommand {
	return &ReduceQuantityCommand{service: service}
}

func (c *ReduceQuantityCommand) Execute(ctx context.Context, msg ReduceQuantityMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reduce quantity service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.ReduceQuantity(ctx, msg.Request)
}

type RegistryWithdrawCommand struct {
	service RegistryService
}

func NewRegistryWithdrawCommand(service RegistryService) *RegistryWithdrawCommand {
	return &RegistryWithdrawCommand{service: service}
}

func (c *RegistryWithdrawCommand) Execute(ctx context.Context, msg RegistryWithdrawMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: registry withdraw service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	out, err := c.service.Withdraw(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InitializeMarketplaceCommand struct {
	service MarketplaceService
}

func NewInitializeMarketplaceCommand(service MarketplaceService) *InitializeMarketplaceCommand {
	return &InitializeMarketplaceCommand{service: service}
}

func (c *InitializeMarketplaceCommand) Execute(ctx context.Context, msg InitializeMarketplaceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: marketplace service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	return c.service.Initialize(ctx, msg.Request)
}

type PurchaseTokenCommand struct {
	service MarketplaceService
}

func NewPurchaseTokenCommand(service MarketplaceService) *PurchaseTokenCommand {
	return &PurchaseTokenCommand{service: service}
}

func (c *PurchaseTokenCommand) Execute(ctx context.Context, msg PurchaseTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: purchase service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	out, err := c.service.PurchaseToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MarketplaceWithdrawCommand struct {
	service MarketplaceService
}

func NewMarketplaceWithdrawCommand(service MarketplaceService) *MarketplaceWithdrawCommand {
	return &MarketplaceWithdrawCommand{service: service}
}

func (c *MarketplaceWithdrawCommand) Execute(ctx context.Context, msg MarketplaceWithdrawMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: marketplace withdraw service is required")
	}
	ctx, err := withCaller(ctx, msg.Caller)
	if err != nil {
		return err
	}
	out, err := c.service.Withdraw(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

// withCaller attaches msg's caller to ctx, keeping any timestamp or contract
// already present.
func withCaller(ctx context.Context, caller string) (context.Context, error) {
	call, _ := core.CallContextFrom(ctx)
	if trimmed := strings.TrimSpace(caller); trimmed != "" {
		call.Caller = trimmed
		return core.WithCallContext(ctx, call), nil
	}
	if strings.TrimSpace(call.Caller) == "" {
		return ctx, commandValidationError("caller", "caller is required")
	}
	return ctx, nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
