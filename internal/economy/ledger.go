package economy

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"microbank/internal/money"
	"microbank/internal/store"
)

// book is the balances and transaction log loaded for one operation.
type book struct {
	balances map[string]decimal.Decimal
	txs      []Transaction
	now      time.Time
	dirty    bool
}

func loadBook(ctx context.Context, rw store.ReadWriter, now time.Time) (*book, error) {
	balances, err := store.Get[map[string]decimal.Decimal](ctx, rw, store.Accounts)
	if err != nil {
		return nil, err
	}
	txs, err := store.Get[[]Transaction](ctx, rw, store.Transactions)
	if err != nil {
		return nil, err
	}
	if balances == nil {
		balances = map[string]decimal.Decimal{}
	}
	return &book{balances: balances, txs: txs, now: now}, nil
}

func (b *book) save(ctx context.Context, rw store.ReadWriter) error {
	if !b.dirty {
		return nil
	}
	if err := store.Put(ctx, rw, store.Accounts, b.balances); err != nil {
		return err
	}
	return store.Put(ctx, rw, store.Transactions, b.txs)
}

func (b *book) balance(p string) (decimal.Decimal, error) {
	bal, ok := b.balances[p]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: principal %q", ErrNotFound, p)
	}
	return bal, nil
}

func (b *book) credit(p string, amt decimal.Decimal) error {
	if !amt.IsPositive() {
		return fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	bal, err := b.balance(p)
	if err != nil {
		return err
	}
	b.balances[p] = money.Round(bal.Add(amt))
	b.dirty = true
	return nil
}

func (b *book) debit(p string, amt decimal.Decimal) error {
	if !amt.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	bal, err := b.balance(p)
	if err != nil {
		return err
	}
	if bal.LessThan(amt) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, p, bal.StringFixed(2), amt.StringFixed(2))
	}
	b.balances[p] = money.Round(bal.Sub(amt))
	b.dirty = true
	return nil
}

// forceAdjust applies a signed delta and clamps the result at zero. It is
// the only path that can take more than a principal holds.
func (b *book) forceAdjust(p string, delta decimal.Decimal) (decimal.Decimal, error) {
	bal, err := b.balance(p)
	if err != nil {
		return decimal.Zero, err
	}
	next := money.Round(bal.Add(delta))
	if next.IsNegative() {
		next = decimal.Zero
	}
	b.balances[p] = next
	b.dirty = true
	return next, nil
}

func (b *book) record(tx Transaction) Transaction {
	tx.ID = nextID(b.txs, func(t Transaction) int64 { return t.ID })
	if tx.Timestamp.IsZero() {
		tx.Timestamp = b.now
	}
	b.txs = append(b.txs, tx)
	b.dirty = true
	return tx
}

var ledgerDocs = []store.Name{store.Accounts, store.Transactions}

// ForceAdjust is the admin back door: it applies a signed delta to any
// principal, clamping at zero instead of rejecting an overdraw.
func (s *Service) ForceAdjust(ctx context.Context, caller User, principal string, delta decimal.Decimal) (Transaction, error) {
	if err := requireAdmin(caller); err != nil {
		return Transaction{}, err
	}
	if delta.IsZero() {
		return Transaction{}, fmt.Errorf("%w: adjustment must be non-zero", ErrValidation)
	}
	delta = money.Round(delta)

	var out Transaction
	err := s.store.Do(ctx, ledgerDocs, func(rw store.ReadWriter) error {
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}
		if _, err := b.forceAdjust(principal, delta); err != nil {
			return err
		}
		typ := TxCredit
		if delta.IsNegative() {
			typ = TxDebit
		}
		out = b.record(Transaction{
			User:        principal,
			Amount:      delta,
			Type:        typ,
			Description: "Admin adjustment",
		})
		return b.save(ctx, rw)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.log.Info("balance adjusted", "by", caller.Username, "principal", principal, "delta", delta.String())
	return out, nil
}

// Balances returns every balance for an admin and only the caller's own
// balance otherwise.
func (s *Service) Balances(ctx context.Context, caller User) (map[string]decimal.Decimal, error) {
	var out map[string]decimal.Decimal
	err := s.store.Do(ctx, []store.Name{store.Accounts}, func(rw store.ReadWriter) error {
		balances, err := store.Get[map[string]decimal.Decimal](ctx, rw, store.Accounts)
		if err != nil {
			return err
		}
		if caller.IsAdmin() {
			out = maps.Clone(balances)
			if out == nil {
				out = map[string]decimal.Decimal{}
			}
			return nil
		}
		out = map[string]decimal.Decimal{caller.Username: balances[caller.Username]}
		return nil
	})
	return out, err
}

func (s *Service) Transactions(ctx context.Context, caller User) ([]Transaction, error) {
	var out []Transaction
	err := s.store.Do(ctx, []store.Name{store.Transactions}, func(rw store.ReadWriter) error {
		txs, err := store.Get[[]Transaction](ctx, rw, store.Transactions)
		if err != nil {
			return err
		}
		out = make([]Transaction, 0, len(txs))
		for _, tx := range txs {
			if caller.IsAdmin() || tx.User == caller.Username {
				out = append(out, tx)
			}
		}
		return nil
	})
	return out, err
}
