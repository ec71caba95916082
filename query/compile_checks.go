package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-credits/core"
)

var (
	_ gocmd.Querier[GetSettingsMessage, core.RegistrySettings]     = (*GetSettingsQuery)(nil)
	_ gocmd.Querier[GetCreditMessage, core.Credit]                 = (*GetCreditQuery)(nil)
	_ gocmd.Querier[GetCreditOwnerMessage, core.CreditOwner]       = (*GetCreditOwnerQuery)(nil)
	_ gocmd.Querier[GetRateMessage, core.CreditRate]               = (*GetRateQuery)(nil)
	_ gocmd.Querier[GetCreditsByOwnerMessage, []core.Credit]       = (*GetCreditsByOwnerQuery)(nil)
	_ gocmd.Querier[GetMarketSettingsMessage, core.MarketSettings] = (*GetMarketSettingsQuery)(nil)
	_ gocmd.Querier[ListPurchasesMessage, []core.Purchase]         = (*ListPurchasesQuery)(nil)
)
