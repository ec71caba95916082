package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	testOwner  = "registry-owner"
	testMarket = "market-owner"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	options := append([]Option{
		WithStore(store),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	svc, err := NewService(DefaultConfig(), options...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

// newInitializedService returns a service with an initialized registry owned
// by testOwner and a marketplace owned by testMarket.
func newInitializedService(t *testing.T, opts ...Option) (*Service, *MemoryStore) {
	t.Helper()
	svc, store := newTestService(t, opts...)
	if err := svc.Registry().Initialize(as(testOwner), InitializeRegistryRequest{Name: "Carbon", Symbol: "CCO2"}); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if err := svc.Marketplace().Initialize(as(testMarket), InitializeMarketplaceRequest{CarbonCreditNFT: svc.Registry().Name()}); err != nil {
		t.Fatalf("initialize marketplace: %v", err)
	}
	return svc, store
}

func as(caller string) context.Context {
	return WithCaller(context.Background(), caller)
}

func mustMint(t *testing.T, svc *Service, to string, quantity int64, rate string) MintResult {
	t.Helper()
	result, err := svc.Registry().Mint(as(testOwner), MintRequest{
		To:             to,
		TypeOfCredit:   "forestry",
		Quantity:       quantity,
		CertificateURI: "ipfs://certificate",
		ExpiryDate:     testNow.Add(24 * time.Hour).Unix(),
		Rate:           rate,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return result
}

func fund(t *testing.T, store *MemoryStore, account string, amount string) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Balances().Credit(ctx, DefaultSettlementSymbol, account, decimal.RequireFromString(amount))
	})
	if err != nil {
		t.Fatalf("fund %s: %v", account, err)
	}
}

func balanceOf(t *testing.T, store *MemoryStore, account string) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = tx.Balances().Balance(ctx, DefaultSettlementSymbol, account)
		return err
	})
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	return balance
}

func eventNames(store *MemoryStore) []string {
	events := store.Events()
	names := make([]string, 0, len(events))
	for _, event := range events {
		names = append(names, event.Name)
	}
	return names
}

func requireErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !IsErrorCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type recordingRateInvalidator struct {
	invalidated []int64
}

func (r *recordingRateInvalidator) InvalidateRate(_ context.Context, tokenID int64) {
	r.invalidated = append(r.invalidated, tokenID)
}
