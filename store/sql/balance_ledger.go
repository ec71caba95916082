package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-credits/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// balanceLedger keeps settlement balances in credits_balances, one row per
// symbol and account, created on first credit.
type balanceLedger struct{ t *sqlTx }

type ledgerEntry struct {
	record         *balanceRecord
	balance        decimal.Decimal
	stake          decimal.Decimal
	pendingUnstake decimal.Decimal
}

func (l balanceLedger) load(ctx context.Context, symbol string, account string) (ledgerEntry, error) {
	record := &balanceRecord{}
	found, err := selectOne(ctx, l.t.tx, record, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("symbol = ?", symbol).Where("account = ?", account)
	})
	if err != nil {
		return ledgerEntry{}, err
	}
	if !found {
		return ledgerEntry{}, nil
	}
	entry := ledgerEntry{record: record}
	if entry.balance, err = parseStoredAmount(record.Balance); err != nil {
		return ledgerEntry{}, err
	}
	if entry.stake, err = parseStoredAmount(record.Stake); err != nil {
		return ledgerEntry{}, err
	}
	if entry.pendingUnstake, err = parseStoredAmount(record.PendingUnstake); err != nil {
		return ledgerEntry{}, err
	}
	return entry, nil
}

func (l balanceLedger) save(ctx context.Context, symbol string, account string, entry ledgerEntry) error {
	if entry.record == nil {
		_, err := l.t.store.balances.CreateTx(ctx, l.t.tx, &balanceRecord{
			ID:             uuid.NewString(),
			Symbol:         symbol,
			Account:        account,
			Balance:        core.FormatAmount(entry.balance),
			Stake:          core.FormatAmount(entry.stake),
			PendingUnstake: core.FormatAmount(entry.pendingUnstake),
			CreatedAt:      l.t.now,
			UpdatedAt:      l.t.now,
		})
		return err
	}
	_, err := l.t.tx.NewUpdate().
		Model((*balanceRecord)(nil)).
		Set("balance = ?", core.FormatAmount(entry.balance)).
		Set("stake = ?", core.FormatAmount(entry.stake)).
		Set("pending_unstake = ?", core.FormatAmount(entry.pendingUnstake)).
		Set("updated_at = ?", l.t.now).
		Where("id = ?", entry.record.ID).
		Exec(ctx)
	return err
}

func (l balanceLedger) Balance(ctx context.Context, symbol string, account string) (decimal.Decimal, error) {
	entry, err := l.load(ctx, symbol, account)
	if err != nil {
		return decimal.Zero, err
	}
	return entry.balance, nil
}

func (l balanceLedger) Spendable(ctx context.Context, symbol string, account string) (decimal.Decimal, error) {
	entry, err := l.load(ctx, symbol, account)
	if err != nil {
		return decimal.Zero, err
	}
	return entry.balance.Sub(entry.stake).Sub(entry.pendingUnstake), nil
}

func (l balanceLedger) Transfer(ctx context.Context, symbol string, from string, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("sqlstore: transfer amount must be positive")
	}
	amount = amount.Round(core.SettlementPrecision)
	source, err := l.load(ctx, symbol, from)
	if err != nil {
		return err
	}
	if source.balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s", core.ErrInsufficientFunds, from, core.FormatAmount(source.balance), symbol)
	}
	source.balance = source.balance.Sub(amount)
	if err := l.save(ctx, symbol, from, source); err != nil {
		return err
	}

	target, err := l.load(ctx, symbol, to)
	if err != nil {
		return err
	}
	target.balance = target.balance.Add(amount)
	return l.save(ctx, symbol, to, target)
}

func (l balanceLedger) Credit(ctx context.Context, symbol string, account string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("sqlstore: credit amount must be positive")
	}
	entry, err := l.load(ctx, symbol, account)
	if err != nil {
		return err
	}
	entry.balance = entry.balance.Add(amount.Round(core.SettlementPrecision))
	return l.save(ctx, symbol, account, entry)
}

func (l balanceLedger) SetStake(ctx context.Context, symbol string, account string, stake decimal.Decimal, pendingUnstake decimal.Decimal) error {
	if stake.IsNegative() || pendingUnstake.IsNegative() {
		return fmt.Errorf("sqlstore: stake amounts must not be negative")
	}
	entry, err := l.load(ctx, symbol, account)
	if err != nil {
		return err
	}
	entry.stake = stake.Round(core.SettlementPrecision)
	entry.pendingUnstake = pendingUnstake.Round(core.SettlementPrecision)
	return l.save(ctx, symbol, account, entry)
}

func parseStoredAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlstore: invalid stored amount %q: %w", value, err)
	}
	return amount, nil
}
