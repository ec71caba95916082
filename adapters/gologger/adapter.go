package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

const LoggerName = "credits"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(LoggerName, provider, logger)
}

// Component returns the logger for a named credits component, e.g.
// "credits.api" or "credits.dispatch".
func Component(provider glog.LoggerProvider, logger glog.Logger, component string) glog.Logger {
	resolvedProvider, resolvedLogger := Resolve(provider, logger)
	component = strings.TrimSpace(component)
	if component == "" || resolvedProvider == nil {
		return resolvedLogger
	}
	if !strings.HasPrefix(component, LoggerName+".") {
		component = LoggerName + "." + component
	}
	return glog.Ensure(resolvedProvider.GetLogger(component))
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
