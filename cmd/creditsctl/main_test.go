package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-credits/adapters/gojob"
	"github.com/goliatone/go-credits/core"
	"github.com/shopspring/decimal"
)

func TestParser_DeployRegistryFlags(t *testing.T) {
	var cli CLI
	parser, err := newParser(&cli, kong.Exit(func(int) { t.Fatalf("unexpected exit") }))
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	kctx, err := parser.Parse([]string{
		"--driver", "postgres",
		"--dsn", "postgres://localhost/credits",
		"deploy", "registry",
		"--name", "Carbon", "--symbol", "CCO2", "--owner", "registry-owner",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if kctx.Command() != "deploy registry" {
		t.Fatalf("expected deploy registry command, got %q", kctx.Command())
	}
	if cli.Driver != "postgres" || cli.Deploy.Registry.Symbol != "CCO2" {
		t.Fatalf("unexpected parsed flags %#v", cli)
	}
}

func TestParser_RejectsUnknownDriver(t *testing.T) {
	var cli CLI
	parser, err := newParser(&cli, kong.Exit(func(int) {}))
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	if _, err := parser.Parse([]string{"--driver", "mysql", "migrate"}); err == nil {
		t.Fatalf("expected enum validation error")
	}
}

func TestLoadEnvFile_ReadsExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credits.env")
	if err := os.WriteFile(path, []byte("CREDITS_TEST_DSN=file:from-env.db\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(envFileVariable, path)
	t.Setenv("CREDITS_TEST_DSN", "")
	os.Unsetenv("CREDITS_TEST_DSN")

	if err := loadEnvFile(); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("CREDITS_TEST_DSN"); got != "file:from-env.db" {
		t.Fatalf("expected dsn from env file, got %q", got)
	}
}

func TestLoadEnvFile_MissingExplicitFileFails(t *testing.T) {
	t.Setenv(envFileVariable, filepath.Join(t.TempDir(), "missing.env"))
	if err := loadEnvFile(); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestCommands_MigrateDeployFundDispatch(t *testing.T) {
	ctx := context.Background()
	g := &Globals{
		Driver:   "sqlite3",
		DSN:      "file:" + filepath.Join(t.TempDir(), "credits.db") + "?cache=shared&_fk=1",
		LogLevel: "error",
	}

	if err := (&MigrateCmd{}).Run(g, ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := (&DeployRegistryCmd{Name: "Carbon", Symbol: "CCO2", Owner: "registry-owner"}).Run(g, ctx); err != nil {
		t.Fatalf("deploy registry: %v", err)
	}
	if err := (&DeployMarketplaceCmd{Registry: core.DefaultRegistryContract, Owner: "market-owner"}).Run(g, ctx); err != nil {
		t.Fatalf("deploy marketplace: %v", err)
	}
	if err := (&FundCmd{Account: "bob", Amount: "12.5"}).Run(g, ctx); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := (&FundCmd{Account: "bob", Amount: "-1"}).Run(g, ctx); err == nil {
		t.Fatalf("expected negative amount to be rejected")
	}

	rt, err := newRuntime(ctx, g)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	settings, err := rt.service.Registry().GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.Owner != "registry-owner" || settings.Symbol != "CCO2" {
		t.Fatalf("unexpected registry settings %#v", settings)
	}

	var balance decimal.Decimal
	err = rt.stores.Store.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		var balanceErr error
		balance, balanceErr = tx.Balances().Balance(ctx, rt.service.Config().Registry.SettlementSymbol, "bob")
		return balanceErr
	})
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected funded balance 12.5, got %s", balance)
	}

	owner := core.WithCaller(ctx, "registry-owner")
	if _, err := rt.service.Registry().Mint(owner, core.MintRequest{
		To:             "alice",
		TypeOfCredit:   "forestry",
		Quantity:       2,
		CertificateURI: "ipfs://certificate",
		ExpiryDate:     time.Now().Add(time.Hour).Unix(),
	}); err != nil {
		t.Fatalf("mint: %v", err)
	}

	worker, err := newDispatchWorker(rt)
	if err != nil {
		t.Fatalf("new dispatch worker: %v", err)
	}
	stats, err := worker.runOnce(ctx, 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if stats.Delivered != 1 {
		t.Fatalf("expected one delivered event, got %#v", stats)
	}
	stats, err = worker.runOnce(ctx, 10)
	if err != nil || stats.Claimed != 0 {
		t.Fatalf("expected empty outbox on second run, got %#v %v", stats, err)
	}
}

func TestDispatchWorker_RejectsInvalidSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := &Globals{
		Driver:   "sqlite3",
		DSN:      "file:" + filepath.Join(t.TempDir(), "credits.db") + "?cache=shared&_fk=1",
		LogLevel: "error",
	}
	if err := (&MigrateCmd{}).Run(g, ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := (&DispatchCmd{Schedule: "not a cron"}).Run(g, ctx); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestNewLogger_LevelAndComponentNames(t *testing.T) {
	var out bytes.Buffer
	root := newLogger(&out, "warn")
	rt := &runtime{provider: root, logger: root}

	rt.component("dispatch").Info("hidden below warn")
	if out.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", out.String())
	}
	rt.component("dispatch").Warn("outbox stalled", "claimed", 0)
	line := out.String()
	if !strings.Contains(line, "outbox stalled") || !strings.Contains(line, "credits.dispatch") {
		t.Fatalf("expected named warn line, got %q", line)
	}
}

type unavailableDispatcher struct {
	calls int
}

func (d *unavailableDispatcher) DispatchPending(context.Context, int) (core.DispatchStats, error) {
	d.calls++
	return core.DispatchStats{}, errors.New("outbox unavailable")
}

func TestMemoryQueue_RequeuesThenDeadLettersFailedDispatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := newMemoryQueue()
	q.now = func() time.Time { return now }

	dispatcher := &unavailableDispatcher{}
	worker, err := gojob.NewOutboxWorker(dispatcher, dispatchRetryPolicy, gojob.WithRetryDelay(dispatchRetryDelay))
	if err != nil {
		t.Fatalf("new outbox worker: %v", err)
	}
	if err := gojob.NewOutboxEnqueuer(q).EnqueueDispatch(ctx, 5, "dispatch-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 1; attempt < dispatchRetryPolicy.MaxAttempts; attempt++ {
		if _, err := worker.ProcessNext(ctx, q); err == nil {
			t.Fatalf("attempt %d: expected dispatch error", attempt)
		}
		if q.Pending() != 1 {
			t.Fatalf("attempt %d: expected job requeued, pending=%d", attempt, q.Pending())
		}
		if _, err := q.Dequeue(ctx); err == nil {
			t.Fatalf("attempt %d: expected requeued job to wait for its delay", attempt)
		}
		now = now.Add(dispatchRetryDelay)
	}

	if _, err := worker.ProcessNext(ctx, q); err == nil {
		t.Fatalf("expected final dispatch error")
	}
	if q.Pending() != 0 {
		t.Fatalf("expected no pending jobs after max attempts, got %d", q.Pending())
	}
	dead := q.DeadLetters()
	if len(dead) != 1 || gojob.AttemptFrom(dead[0]) != dispatchRetryPolicy.MaxAttempts {
		t.Fatalf("expected one dead-lettered job after %d attempts, got %d", dispatchRetryPolicy.MaxAttempts, len(dead))
	}
	if dispatcher.calls != dispatchRetryPolicy.MaxAttempts {
		t.Fatalf("expected %d dispatch calls, got %d", dispatchRetryPolicy.MaxAttempts, dispatcher.calls)
	}
}
