package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[InitializeRegistryMessage]    = (*InitializeRegistryCommand)(nil)
	_ gocmd.Commander[MintMessage]                  = (*MintCommand)(nil)
	_ gocmd.Commander[TransferMessage]              = (*TransferCommand)(nil)
	_ gocmd.Commander[RetireMessage]                = (*RetireCommand)(nil)
	_ gocmd.Commander[AddMinterMessage]             = (*AddMinterCommand)(nil)
	_ gocmd.Commander[RemoveMinterMessage]          = (*RemoveMinterCommand)(nil)
	_ gocmd.Commander[SetRateMessage]               = (*SetRateCommand)(nil)
	_ gocmd.Commander[ReduceQuantityMessage]        = (*ReduceQuantityCommand)(nil)
	_ gocmd.Commander[RegistryWithdrawMessage]      = (*RegistryWithdrawCommand)(nil)
	_ gocmd.Commander[InitializeMarketplaceMessage] = (*InitializeMarketplaceCommand)(nil)
	_ gocmd.Commander[PurchaseTokenMessage]         = (*PurchaseTokenCommand)(nil)
	_ gocmd.Commander[MarketplaceWithdrawMessage]   = (*MarketplaceWithdrawCommand)(nil)
)
