package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Each transaction works on a copy of
// the state that replaces the committed state only when fn succeeds.
// It also serves as the OutboxStore for the events it recorded.
type MemoryStore struct {
	mu     sync.Mutex
	state  memoryState
	faults map[string]error
	now    func() time.Time
}

type memoryBalance struct {
	balance        decimal.Decimal
	stake          decimal.Decimal
	pendingUnstake decimal.Decimal
}

type memoryOutboxEntry struct {
	event         Event
	status        string
	attempts      int
	nextAttemptAt time.Time
	lastError     string
}

type memoryState struct {
	settings   *RegistrySettings
	credits    map[int64]Credit
	ownerships map[int64]Ownership
	minters    map[string]struct{}
	rates      map[int64]TokenRate
	market     *MarketSettings
	purchases  []Purchase
	balances   map[string]memoryBalance
	outbox     []memoryOutboxEntry
}

const (
	outboxStatusPending    = "pending"
	outboxStatusProcessing = "processing"
	outboxStatusDelivered  = "delivered"
	outboxStatusFailed     = "failed"
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			credits:    map[int64]Credit{},
			ownerships: map[int64]Ownership{},
			minters:    map[string]struct{}{},
			rates:      map[int64]TokenRate{},
			balances:   map[string]memoryBalance{},
		},
		faults: map[string]error{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if m == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	if fn == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	tx := &memoryTx{state: &working, faults: m.faults}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = working
	return nil
}

// Events returns every recorded event in commit order.
func (m *MemoryStore) Events() []Event {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.state.outbox))
	for _, entry := range m.state.outbox {
		out = append(out, entry.event)
	}
	return out
}

func (m *MemoryStore) ClaimBatch(_ context.Context, limit int) ([]Event, error) {
	if m == nil {
		return nil, fmt.Errorf("core: memory store is not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []Event{}
	for i := range m.state.outbox {
		if limit > 0 && len(out) >= limit {
			break
		}
		entry := &m.state.outbox[i]
		if entry.status != outboxStatusPending {
			continue
		}
		if !entry.nextAttemptAt.IsZero() && entry.nextAttemptAt.After(now) {
			continue
		}
		entry.status = outboxStatusProcessing
		event := entry.event
		event.Metadata = copyAnyMap(event.Metadata)
		event.Metadata[MetadataKeyOutboxAttempts] = entry.attempts
		out = append(out, event)
	}
	return out, nil
}

func (m *MemoryStore) Ack(_ context.Context, eventID string) error {
	return m.updateOutbox(eventID, func(entry *memoryOutboxEntry) {
		entry.status = outboxStatusDelivered
	})
}

func (m *MemoryStore) Retry(_ context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	return m.updateOutbox(eventID, func(entry *memoryOutboxEntry) {
		entry.attempts++
		entry.nextAttemptAt = nextAttemptAt
		if cause != nil {
			entry.lastError = cause.Error()
		}
		if nextAttemptAt.IsZero() {
			entry.status = outboxStatusFailed
			return
		}
		entry.status = outboxStatusPending
	})
}

func (m *MemoryStore) updateOutbox(eventID string, update func(entry *memoryOutboxEntry)) error {
	if m == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.outbox {
		if m.state.outbox[i].event.ID == strings.TrimSpace(eventID) {
			update(&m.state.outbox[i])
			return nil
		}
	}
	return fmt.Errorf("core: outbox event %q not found", eventID)
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		credits:    make(map[int64]Credit, len(s.credits)),
		ownerships: make(map[int64]Ownership, len(s.ownerships)),
		minters:    make(map[string]struct{}, len(s.minters)),
		rates:      make(map[int64]TokenRate, len(s.rates)),
		purchases:  append([]Purchase(nil), s.purchases...),
		balances:   make(map[string]memoryBalance, len(s.balances)),
		outbox:     append([]memoryOutboxEntry(nil), s.outbox...),
	}
	if s.settings != nil {
		settings := *s.settings
		out.settings = &settings
	}
	if s.market != nil {
		market := *s.market
		out.market = &market
	}
	for key, value := range s.credits {
		out.credits[key] = value
	}
	for key, value := range s.ownerships {
		out.ownerships[key] = value
	}
	for key := range s.minters {
		out.minters[key] = struct{}{}
	}
	for key, value := range s.rates {
		out.rates[key] = value
	}
	for key, value := range s.balances {
		out.balances[key] = value
	}
	return out
}

type memoryTx struct {
	state  *memoryState
	faults map[string]error
}

func (t *memoryTx) fault(name string) error {
	if t == nil || len(t.faults) == 0 {
		return nil
	}
	return t.faults[name]
}

func (t *memoryTx) Settings() SettingsRepository {
	return memorySettings{t}
}

func (t *memoryTx) Credits() CreditRepository {
	return memoryCredits{t}
}

func (t *memoryTx) Ownerships() OwnershipRepository {
	return memoryOwnerships{t}
}

func (t *memoryTx) Minters() MinterRepository {
	return memoryMinters{t}
}

func (t *memoryTx) Rates() RateRepository {
	return memoryRates{t}
}

func (t *memoryTx) Market() MarketSettingsRepository {
	return memoryMarket{t}
}

func (t *memoryTx) Purchases() PurchaseRepository {
	return memoryPurchases{t}
}

func (t *memoryTx) Balances() BalanceLedger {
	return memoryBalances{t}
}

func (t *memoryTx) Events() EventSink {
	return memoryEvents{t}
}

type memorySettings struct{ tx *memoryTx }

func (r memorySettings) Get(context.Context) (RegistrySettings, bool, error) {
	if r.tx.state.settings == nil {
		return RegistrySettings{}, false, nil
	}
	return *r.tx.state.settings, true, nil
}

func (r memorySettings) Insert(_ context.Context, settings RegistrySettings) error {
	if r.tx.state.settings != nil {
		return fmt.Errorf("core: registry settings already exist")
	}
	r.tx.state.settings = &settings
	return nil
}

func (r memorySettings) Update(_ context.Context, settings RegistrySettings) error {
	if err := r.tx.fault("settings.update"); err != nil {
		return err
	}
	if r.tx.state.settings == nil {
		return fmt.Errorf("core: registry settings not found")
	}
	r.tx.state.settings = &settings
	return nil
}

type memoryCredits struct{ tx *memoryTx }

func (r memoryCredits) Get(_ context.Context, id int64) (Credit, bool, error) {
	credit, ok := r.tx.state.credits[id]
	return credit, ok, nil
}

func (r memoryCredits) ListByIDs(_ context.Context, ids []int64) ([]Credit, error) {
	out := make([]Credit, 0, len(ids))
	for _, id := range ids {
		if credit, ok := r.tx.state.credits[id]; ok {
			out = append(out, credit)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryCredits) Insert(_ context.Context, credit Credit) error {
	if _, exists := r.tx.state.credits[credit.ID]; exists {
		return fmt.Errorf("core: credit %d already exists", credit.ID)
	}
	r.tx.state.credits[credit.ID] = credit
	return nil
}

func (r memoryCredits) Update(_ context.Context, credit Credit) error {
	if _, exists := r.tx.state.credits[credit.ID]; !exists {
		return fmt.Errorf("core: credit %d not found", credit.ID)
	}
	r.tx.state.credits[credit.ID] = credit
	return nil
}

type memoryOwnerships struct{ tx *memoryTx }

func (r memoryOwnerships) Get(_ context.Context, id int64) (Ownership, bool, error) {
	ownership, ok := r.tx.state.ownerships[id]
	return ownership, ok, nil
}

func (r memoryOwnerships) ListByAccount(_ context.Context, account string) ([]Ownership, error) {
	out := []Ownership{}
	for _, ownership := range r.tx.state.ownerships {
		if ownership.Account == account {
			out = append(out, ownership)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryOwnerships) Insert(_ context.Context, ownership Ownership) error {
	if _, exists := r.tx.state.ownerships[ownership.ID]; exists {
		return fmt.Errorf("core: ownership %d already exists", ownership.ID)
	}
	r.tx.state.ownerships[ownership.ID] = ownership
	return nil
}

func (r memoryOwnerships) Update(_ context.Context, ownership Ownership) error {
	if _, exists := r.tx.state.ownerships[ownership.ID]; !exists {
		return fmt.Errorf("core: ownership %d not found", ownership.ID)
	}
	r.tx.state.ownerships[ownership.ID] = ownership
	return nil
}

func (r memoryOwnerships) Delete(_ context.Context, id int64) error {
	delete(r.tx.state.ownerships, id)
	return nil
}

type memoryMinters struct{ tx *memoryTx }

func (r memoryMinters) Exists(_ context.Context, account string) (bool, error) {
	_, ok := r.tx.state.minters[account]
	return ok, nil
}

func (r memoryMinters) Insert(_ context.Context, minter AuthorizedMinter) error {
	r.tx.state.minters[minter.Account] = struct{}{}
	return nil
}

func (r memoryMinters) Delete(_ context.Context, account string) error {
	delete(r.tx.state.minters, account)
	return nil
}

type memoryRates struct{ tx *memoryTx }

func (r memoryRates) Get(_ context.Context, id int64) (TokenRate, bool, error) {
	rate, ok := r.tx.state.rates[id]
	return rate, ok, nil
}

func (r memoryRates) Upsert(_ context.Context, rate TokenRate) error {
	r.tx.state.rates[rate.ID] = rate
	return nil
}

type memoryMarket struct{ tx *memoryTx }

func (r memoryMarket) Get(context.Context) (MarketSettings, bool, error) {
	if r.tx.state.market == nil {
		return MarketSettings{}, false, nil
	}
	return *r.tx.state.market, true, nil
}

func (r memoryMarket) Insert(_ context.Context, settings MarketSettings) error {
	if r.tx.state.market != nil {
		return fmt.Errorf("core: marketplace settings already exist")
	}
	r.tx.state.market = &settings
	return nil
}

type memoryPurchases struct{ tx *memoryTx }

func (r memoryPurchases) Insert(_ context.Context, purchase Purchase) error {
	if err := r.tx.fault("purchases.insert"); err != nil {
		return err
	}
	r.tx.state.purchases = append(r.tx.state.purchases, purchase)
	return nil
}

// List returns purchases in insertion order, matching the SQL sequence.
func (r memoryPurchases) List(_ context.Context, filter PurchaseFilter) ([]Purchase, error) {
	out := []Purchase{}
	for _, purchase := range r.tx.state.purchases {
		if filter.Buyer != "" && purchase.Buyer != filter.Buyer {
			continue
		}
		if filter.Seller != "" && purchase.Seller != filter.Seller {
			continue
		}
		if filter.TokenID != nil && purchase.TokenID != *filter.TokenID {
			continue
		}
		out = append(out, purchase)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Purchase{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memoryBalances struct{ tx *memoryTx }

func balanceKey(symbol string, account string) string {
	return symbol + "|" + account
}

func (r memoryBalances) Balance(_ context.Context, symbol string, account string) (decimal.Decimal, error) {
	return r.tx.state.balances[balanceKey(symbol, account)].balance, nil
}

func (r memoryBalances) Spendable(_ context.Context, symbol string, account string) (decimal.Decimal, error) {
	entry := r.tx.state.balances[balanceKey(symbol, account)]
	return entry.balance.Sub(entry.stake).Sub(entry.pendingUnstake), nil
}

func (r memoryBalances) Transfer(_ context.Context, symbol string, from string, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("core: transfer amount must be positive")
	}
	source := r.tx.state.balances[balanceKey(symbol, from)]
	if source.balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s", ErrInsufficientFunds, from, FormatAmount(source.balance), symbol)
	}
	source.balance = source.balance.Sub(amount)
	r.tx.state.balances[balanceKey(symbol, from)] = source

	target := r.tx.state.balances[balanceKey(symbol, to)]
	target.balance = target.balance.Add(amount)
	r.tx.state.balances[balanceKey(symbol, to)] = target
	return nil
}

func (r memoryBalances) Credit(_ context.Context, symbol string, account string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("core: credit amount must be positive")
	}
	entry := r.tx.state.balances[balanceKey(symbol, account)]
	entry.balance = entry.balance.Add(amount.Round(SettlementPrecision))
	r.tx.state.balances[balanceKey(symbol, account)] = entry
	return nil
}

func (r memoryBalances) SetStake(_ context.Context, symbol string, account string, stake decimal.Decimal, pendingUnstake decimal.Decimal) error {
	entry := r.tx.state.balances[balanceKey(symbol, account)]
	entry.stake = stake
	entry.pendingUnstake = pendingUnstake
	r.tx.state.balances[balanceKey(symbol, account)] = entry
	return nil
}

type memoryEvents struct{ tx *memoryTx }

func (r memoryEvents) Enqueue(_ context.Context, event Event) error {
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	event.Payload = copyAnyMap(event.Payload)
	event.Metadata = copyAnyMap(event.Metadata)
	r.tx.state.outbox = append(r.tx.state.outbox, memoryOutboxEntry{
		event:  event,
		status: outboxStatusPending,
	})
	return nil
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ OutboxStore = (*MemoryStore)(nil)
)
