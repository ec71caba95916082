package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-credits/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// registryLockKey is the postgres advisory lock shared by every credits
// transaction so concurrent processes apply operations one at a time.
const registryLockKey int64 = 0x63726564697473

// Store implements core.Store over a bun database. Transactions are
// serialized in process and, on postgres, across processes.
type Store struct {
	db *bun.DB
	mu sync.Mutex

	settings  repository.Repository[*settingsRecord]
	credits   repository.Repository[*creditRecord]
	owners    repository.Repository[*ownershipRecord]
	minters   repository.Repository[*minterRecord]
	rates     repository.Repository[*rateRecord]
	market    repository.Repository[*marketSettingsRecord]
	purchases repository.Repository[*purchaseRecord]
	balances  repository.Repository[*balanceRecord]
	outbox    repository.Repository[*outboxRecord]
}

func NewStore(db *bun.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	store := &Store{db: db}
	var err error
	if store.settings, err = newValidatedRepository(db, "settings", settingsHandlers()); err != nil {
		return nil, err
	}
	if store.credits, err = newValidatedRepository(db, "credit", creditHandlers()); err != nil {
		return nil, err
	}
	if store.owners, err = newValidatedRepository(db, "ownership", ownershipHandlers()); err != nil {
		return nil, err
	}
	if store.minters, err = newValidatedRepository(db, "minter", minterHandlers()); err != nil {
		return nil, err
	}
	if store.rates, err = newValidatedRepository(db, "rate", rateHandlers()); err != nil {
		return nil, err
	}
	if store.market, err = newValidatedRepository(db, "market settings", marketSettingsHandlers()); err != nil {
		return nil, err
	}
	if store.purchases, err = newValidatedRepository(db, "purchase", purchaseHandlers()); err != nil {
		return nil, err
	}
	if store.balances, err = newValidatedRepository(db, "balance", balanceHandlers()); err != nil {
		return nil, err
	}
	if store.outbox, err = newValidatedRepository(db, "outbox", outboxHandlers()); err != nil {
		return nil, err
	}
	return store, nil
}

func newValidatedRepository[T any](db *bun.DB, name string, handlers repository.ModelHandlers[T]) (repository.Repository[T], error) {
	repo := repository.NewRepository[T](db, handlers)
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", name, err)
		}
	}
	return repo, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: store is not configured")
	}
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if s.db.Dialect().Name() == dialect.PG {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", registryLockKey); err != nil {
				return fmt.Errorf("sqlstore: acquire registry lock: %w", err)
			}
		}
		return fn(ctx, &sqlTx{store: s, tx: tx, now: time.Now().UTC()})
	})
}

// GetRate reads a token rate outside of a transaction. It waits for any
// running store transaction so it never observes a rate mid-write.
func (s *Store) GetRate(ctx context.Context, tokenID int64) (core.TokenRate, bool, error) {
	if s == nil || s.rates == nil {
		return core.TokenRate{}, false, fmt.Errorf("sqlstore: store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, _, err := s.rates.List(ctx,
		repository.SelectBy("token_id", "=", strconv.FormatInt(tokenID, 10)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenRate{}, false, err
	}
	if len(records) == 0 {
		return core.TokenRate{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

type sqlTx struct {
	store *Store
	tx    bun.Tx
	now   time.Time
}

func (t *sqlTx) Settings() core.SettingsRepository {
	return settingsRepository{t}
}

func (t *sqlTx) Credits() core.CreditRepository {
	return creditRepository{t}
}

func (t *sqlTx) Ownerships() core.OwnershipRepository {
	return ownershipRepository{t}
}

func (t *sqlTx) Minters() core.MinterRepository {
	return minterRepository{t}
}

func (t *sqlTx) Rates() core.RateRepository {
	return rateRepository{t}
}

func (t *sqlTx) Market() core.MarketSettingsRepository {
	return marketRepository{t}
}

func (t *sqlTx) Purchases() core.PurchaseRepository {
	return purchaseRepository{t}
}

func (t *sqlTx) Balances() core.BalanceLedger {
	return balanceLedger{t}
}

func (t *sqlTx) Events() core.EventSink {
	return eventSink{t}
}

// selectOne scans the first row matched by apply into dst and reports
// whether one was found.
func selectOne(ctx context.Context, tx bun.Tx, dst any, apply func(q *bun.SelectQuery) *bun.SelectQuery) (bool, error) {
	query := tx.NewSelect().Model(dst).Limit(1)
	if apply != nil {
		query = apply(query)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type settingsRepository struct{ t *sqlTx }

func (r settingsRepository) Get(ctx context.Context) (core.RegistrySettings, bool, error) {
	record := &settingsRecord{}
	found, err := selectOne(ctx, r.t.tx, record, nil)
	if err != nil || !found {
		return core.RegistrySettings{}, found, err
	}
	return record.toDomain(), true, nil
}

func (r settingsRepository) Insert(ctx context.Context, settings core.RegistrySettings) error {
	exists, err := r.t.tx.NewSelect().Model((*settingsRecord)(nil)).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("sqlstore: registry settings already exist")
	}
	_, err = r.t.store.settings.CreateTx(ctx, r.t.tx, &settingsRecord{
		ID:          uuid.NewString(),
		Name:        settings.Name,
		Symbol:      settings.Symbol,
		TotalSupply: settings.TotalSupply,
		TokenID:     settings.TokenID,
		DefaultRate: settings.DefaultRate,
		Owner:       settings.Owner,
		CreatedAt:   r.t.now,
		UpdatedAt:   r.t.now,
	})
	return err
}

func (r settingsRepository) Update(ctx context.Context, settings core.RegistrySettings) error {
	result, err := r.t.tx.NewUpdate().
		Model((*settingsRecord)(nil)).
		Set("name = ?", settings.Name).
		Set("symbol = ?", settings.Symbol).
		Set("total_supply = ?", settings.TotalSupply).
		Set("token_id = ?", settings.TokenID).
		Set("default_rate = ?", settings.DefaultRate).
		Set("owner = ?", settings.Owner).
		Set("updated_at = ?", r.t.now).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, "registry settings not found")
}

type creditRepository struct{ t *sqlTx }

func (r creditRepository) Get(ctx context.Context, id int64) (core.Credit, bool, error) {
	record := &creditRecord{}
	found, err := selectOne(ctx, r.t.tx, record, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("token_id = ?", id)
	})
	if err != nil || !found {
		return core.Credit{}, found, err
	}
	return record.toDomain(), true, nil
}

func (r creditRepository) ListByIDs(ctx context.Context, ids []int64) ([]core.Credit, error) {
	if len(ids) == 0 {
		return []core.Credit{}, nil
	}
	var records []creditRecord
	if err := r.t.tx.NewSelect().
		Model(&records).
		Where("token_id IN (?)", bun.In(ids)).
		Order("token_id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Credit, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (r creditRepository) Insert(ctx context.Context, credit core.Credit) error {
	_, err := r.t.store.credits.CreateTx(ctx, r.t.tx, &creditRecord{
		ID:             uuid.NewString(),
		TokenID:        credit.ID,
		TypeOfCredit:   credit.TypeOfCredit,
		Quantity:       credit.Quantity,
		CertificateURI: credit.CertificateURI,
		ExpiryDate:     credit.ExpiryDate,
		Retired:        credit.Retired,
		CreatedAt:      r.t.now,
		UpdatedAt:      r.t.now,
	})
	return err
}

func (r creditRepository) Update(ctx context.Context, credit core.Credit) error {
	result, err := r.t.tx.NewUpdate().
		Model((*creditRecord)(nil)).
		Set("type_of_credit = ?", credit.TypeOfCredit).
		Set("quantity = ?", credit.Quantity).
		Set("certificate_uri = ?", credit.CertificateURI).
		Set("expiry_date = ?", credit.ExpiryDate).
		Set("retired = ?", credit.Retired).
		Set("updated_at = ?", r.t.now).
		Where("token_id = ?", credit.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, fmt.Sprintf("credit %d not found", credit.ID))
}

type ownershipRepository struct{ t *sqlTx }

func (r ownershipRepository) Get(ctx context.Context, id int64) (core.Ownership, bool, error) {
	record := &ownershipRecord{}
	found, err := selectOne(ctx, r.t.tx, record, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("token_id = ?", id)
	})
	if err != nil || !found {
		return core.Ownership{}, found, err
	}
	return record.toDomain(), true, nil
}

func (r ownershipRepository) ListByAccount(ctx context.Context, account string) ([]core.Ownership, error) {
	var records []ownershipRecord
	if err := r.t.tx.NewSelect().
		Model(&records).
		Where("account = ?", account).
		Order("token_id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Ownership, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (r ownershipRepository) Insert(ctx context.Context, ownership core.Ownership) error {
	_, err := r.t.store.owners.CreateTx(ctx, r.t.tx, &ownershipRecord{
		ID:        uuid.NewString(),
		TokenID:   ownership.ID,
		Account:   ownership.Account,
		CreatedAt: r.t.now,
		UpdatedAt: r.t.now,
	})
	return err
}

func (r ownershipRepository) Update(ctx context.Context, ownership core.Ownership) error {
	result, err := r.t.tx.NewUpdate().
		Model((*ownershipRecord)(nil)).
		Set("account = ?", ownership.Account).
		Set("updated_at = ?", r.t.now).
		Where("token_id = ?", ownership.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, fmt.Sprintf("ownership %d not found", ownership.ID))
}

func (r ownershipRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.t.tx.NewDelete().
		Model((*ownershipRecord)(nil)).
		Where("token_id = ?", id).
		Exec(ctx)
	return err
}

type minterRepository struct{ t *sqlTx }

func (r minterRepository) Exists(ctx context.Context, account string) (bool, error) {
	return r.t.tx.NewSelect().
		Model((*minterRecord)(nil)).
		Where("account = ?", account).
		Exists(ctx)
}

func (r minterRepository) Insert(ctx context.Context, minter core.AuthorizedMinter) error {
	_, err := r.t.store.minters.CreateTx(ctx, r.t.tx, &minterRecord{
		ID:        uuid.NewString(),
		Account:   minter.Account,
		CreatedAt: r.t.now,
	})
	return err
}

func (r minterRepository) Delete(ctx context.Context, account string) error {
	_, err := r.t.tx.NewDelete().
		Model((*minterRecord)(nil)).
		Where("account = ?", account).
		Exec(ctx)
	return err
}

type rateRepository struct{ t *sqlTx }

func (r rateRepository) Get(ctx context.Context, id int64) (core.TokenRate, bool, error) {
	record := &rateRecord{}
	found, err := selectOne(ctx, r.t.tx, record, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("token_id = ?", id)
	})
	if err != nil || !found {
		return core.TokenRate{}, found, err
	}
	return record.toDomain(), true, nil
}

func (r rateRepository) Upsert(ctx context.Context, rate core.TokenRate) error {
	result, err := r.t.tx.NewUpdate().
		Model((*rateRecord)(nil)).
		Set("rate = ?", rate.Rate).
		Set("updated_at = ?", r.t.now).
		Where("token_id = ?", rate.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected > 0 {
		return nil
	}
	_, err = r.t.store.rates.CreateTx(ctx, r.t.tx, &rateRecord{
		ID:        uuid.NewString(),
		TokenID:   rate.ID,
		Rate:      rate.Rate,
		CreatedAt: r.t.now,
		UpdatedAt: r.t.now,
	})
	return err
}

type marketRepository struct{ t *sqlTx }

func (r marketRepository) Get(ctx context.Context) (core.MarketSettings, bool, error) {
	record := &marketSettingsRecord{}
	found, err := selectOne(ctx, r.t.tx, record, nil)
	if err != nil || !found {
		return core.MarketSettings{}, found, err
	}
	return record.toDomain(), true, nil
}

func (r marketRepository) Insert(ctx context.Context, settings core.MarketSettings) error {
	exists, err := r.t.tx.NewSelect().Model((*marketSettingsRecord)(nil)).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("sqlstore: marketplace settings already exist")
	}
	_, err = r.t.store.market.CreateTx(ctx, r.t.tx, &marketSettingsRecord{
		ID:              uuid.NewString(),
		CarbonCreditNFT: settings.CarbonCreditNFT,
		Owner:           settings.Owner,
		CreatedAt:       r.t.now,
	})
	return err
}

type purchaseRepository struct{ t *sqlTx }

// Insert numbers purchases in commit order. List returns them in that order
// because purchase timestamps come from the caller and may go backwards.
func (r purchaseRepository) Insert(ctx context.Context, purchase core.Purchase) error {
	var last sql.NullInt64
	if err := r.t.tx.NewSelect().
		Model((*purchaseRecord)(nil)).
		ColumnExpr("MAX(sequence)").
		Scan(ctx, &last); err != nil {
		return err
	}
	_, err := r.t.store.purchases.CreateTx(ctx, r.t.tx, &purchaseRecord{
		ID:          uuid.NewString(),
		Sequence:    last.Int64 + 1,
		TokenID:     purchase.TokenID,
		Buyer:       purchase.Buyer,
		Seller:      purchase.Seller,
		Price:       purchase.Price,
		PurchasedAt: purchase.Timestamp,
		CreatedAt:   r.t.now,
	})
	return err
}

func (r purchaseRepository) List(ctx context.Context, filter core.PurchaseFilter) ([]core.Purchase, error) {
	var records []purchaseRecord
	query := r.t.tx.NewSelect().Model(&records)
	if buyer := strings.TrimSpace(filter.Buyer); buyer != "" {
		query = query.Where("buyer = ?", buyer)
	}
	if seller := strings.TrimSpace(filter.Seller); seller != "" {
		query = query.Where("seller = ?", seller)
	}
	if filter.TokenID != nil {
		query = query.Where("token_id = ?", *filter.TokenID)
	}
	query = query.Order("sequence ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else if filter.Offset > 0 {
		query = query.Limit(math.MaxInt32)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Purchase, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func requireAffected(result sql.Result, message string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: %s", message)
	}
	return nil
}

var _ core.Store = (*Store)(nil)
