package core

import (
	"context"
	"strings"
	"time"
)

// CallContext identifies who submitted a transaction, when, and which
// contract is acting on their behalf.
type CallContext struct {
	Caller    string
	Timestamp time.Time
	Contract  string
}

type callContextKey struct{}

func WithCallContext(ctx context.Context, call CallContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callContextKey{}, call)
}

// WithCaller is shorthand for a call context carrying only the caller.
func WithCaller(ctx context.Context, caller string) context.Context {
	call, _ := CallContextFrom(ctx)
	call.Caller = caller
	return WithCallContext(ctx, call)
}

func CallContextFrom(ctx context.Context) (CallContext, bool) {
	if ctx == nil {
		return CallContext{}, false
	}
	call, ok := ctx.Value(callContextKey{}).(CallContext)
	return call, ok
}

func (s *Service) resolveCall(ctx context.Context) (CallContext, error) {
	call, _ := CallContextFrom(ctx)
	call.Caller = strings.TrimSpace(call.Caller)
	if call.Caller == "" {
		return CallContext{}, BadInputError("caller is required")
	}
	if call.Timestamp.IsZero() {
		call.Timestamp = s.now()
	}
	return call, nil
}
