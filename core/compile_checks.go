package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ RegistryCommands    = (*CreditRegistry)(nil)
	_ RegistryQueries     = (*CreditRegistry)(nil)
	_ CreditContract      = (*CreditRegistry)(nil)
	_ MarketplaceCommands = (*Marketplace)(nil)
	_ MarketplaceQueries  = (*Marketplace)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
