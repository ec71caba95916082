package credits_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	credits "github.com/goliatone/go-credits"
	"github.com/goliatone/go-credits/core"
	creditmigrations "github.com/goliatone/go-credits/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type sqliteConfig struct {
	dsn string
}

func (sqliteConfig) GetDebug() bool                { return false }
func (sqliteConfig) GetDriver() string             { return "sqlite3" }
func (c sqliteConfig) GetServer() string           { return c.dsn }
func (sqliteConfig) GetPingTimeout() time.Duration { return time.Second }
func (sqliteConfig) GetOtelIdentifier() string     { return "go-credits-root-tests" }

func TestSetupSQL_CachedRateIsInvalidatedBySetRate(t *testing.T) {
	client := newMigratedSQLiteClient(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cacheCfg := repositorycache.DefaultConfig()
	cacheCfg.TTL = time.Minute
	cache, err := repositorycache.NewCacheService(cacheCfg)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}

	svc, stores, err := credits.SetupSQL(credits.DefaultConfig(), client,
		[]credits.SQLStoreOption{credits.WithRateCache(cache)},
		credits.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("setup sql: %v", err)
	}
	if _, ok := stores.RateReader.(core.RateInvalidator); !ok {
		t.Fatalf("expected cached rate reader")
	}

	owner := core.WithCaller(context.Background(), "registry-owner")
	if err := svc.Registry().Initialize(owner, core.InitializeRegistryRequest{Name: "Carbon", Symbol: "CCO2"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	minted, err := svc.Registry().Mint(owner, core.MintRequest{
		To:             "alice",
		TypeOfCredit:   "forestry",
		Quantity:       3,
		CertificateURI: "ipfs://certificate",
		ExpiryDate:     now.Add(time.Hour).Unix(),
		Rate:           "2",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rate, err := svc.Registry().GetRate(context.Background(), minted.Credit.ID)
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if rate.Rate == nil || *rate.Rate != "2" {
		t.Fatalf("expected rate 2, got %#v", rate)
	}

	if err := svc.Registry().SetRate(owner, core.SetRateRequest{TokenID: minted.Credit.ID, Rate: "7"}); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	rate, err = svc.Registry().GetRate(context.Background(), minted.Credit.ID)
	if err != nil {
		t.Fatalf("get rate after set: %v", err)
	}
	if rate.Rate == nil || *rate.Rate != "7" {
		t.Fatalf("expected refreshed rate 7, got %#v", rate)
	}
}

func TestNewSQLStores_RequiresClient(t *testing.T) {
	if _, err := credits.NewSQLStores(nil); err == nil {
		t.Fatalf("expected error for missing persistence client")
	}
}

func newMigratedSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:credits-root-%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	client, err := persistence.New(sqliteConfig{dsn: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := creditmigrations.Register(ctx, creditmigrations.DialectSQLite, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}
