package economy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microbank/internal/money"
	"microbank/internal/store"
)

var hundred = decimal.NewFromInt(100)

// effectiveRate returns the rate of the first active season whose window
// contains now, or fallback when none does. Seasons never stack here.
func effectiveRate(seasons []TaxSeason, now time.Time, fallback decimal.Decimal) decimal.Decimal {
	for _, ts := range seasons {
		if ts.covers(now) {
			return ts.Rate
		}
	}
	return fallback
}

// EffectiveRateAt is the percentage charged on a sale or a mini-game payout
// at the given time.
func (s *Service) EffectiveRateAt(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	seasons, err := s.Seasons(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return effectiveRate(seasons, now, s.defaultTaxRate), nil
}

// CurrentRate is EffectiveRateAt for the service clock.
func (s *Service) CurrentRate(ctx context.Context) (decimal.Decimal, error) {
	return s.EffectiveRateAt(ctx, s.clock())
}

func (s *Service) Seasons(ctx context.Context) ([]TaxSeason, error) {
	var out []TaxSeason
	err := s.store.Do(ctx, []store.Name{store.TaxSeasons}, func(rw store.ReadWriter) error {
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		out = seasons
		return err
	})
	return out, err
}

type SeasonInput struct {
	Name      string
	Rate      decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
	Frequency Frequency
}

func (in SeasonInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: season name is required", ErrValidation)
	}
	if in.Rate.IsNegative() || in.Rate.GreaterThan(hundred) {
		return fmt.Errorf("%w: rate must be between 0 and 100", ErrValidation)
	}
	hasWindow := in.StartDate != nil || in.EndDate != nil
	switch {
	case hasWindow && in.Frequency != "":
		return fmt.Errorf("%w: a season has either a window or a frequency, not both", ErrValidation)
	case hasWindow:
		if in.StartDate == nil || in.EndDate == nil {
			return fmt.Errorf("%w: a window needs both start and end dates", ErrValidation)
		}
		if in.EndDate.Before(*in.StartDate) {
			return fmt.Errorf("%w: end date is before start date", ErrValidation)
		}
	case in.Frequency != "":
		if !slices.Contains([]Frequency{Weekly, Monthly, Yearly}, in.Frequency) {
			return fmt.Errorf("%w: unknown frequency %q", ErrValidation, in.Frequency)
		}
	default:
		return fmt.Errorf("%w: a season needs a window or a frequency", ErrValidation)
	}
	return nil
}

func (s *Service) AddSeason(ctx context.Context, caller User, in SeasonInput) (TaxSeason, error) {
	if err := requireAdmin(caller); err != nil {
		return TaxSeason{}, err
	}
	if err := in.validate(); err != nil {
		return TaxSeason{}, err
	}
	var out TaxSeason
	err := s.store.Do(ctx, []store.Name{store.TaxSeasons}, func(rw store.ReadWriter) error {
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		if err != nil {
			return err
		}
		out = TaxSeason{
			ID:        nextID(seasons, func(t TaxSeason) int64 { return t.ID }),
			Name:      strings.TrimSpace(in.Name),
			Rate:      in.Rate,
			Active:    true,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Frequency: in.Frequency,
			CreatedAt: s.clock(),
		}
		return store.Put(ctx, rw, store.TaxSeasons, append(seasons, out))
	})
	if err != nil {
		return TaxSeason{}, err
	}
	s.log.Info("tax season added", "id", out.ID, "name", out.Name, "rate", out.Rate.String())
	return out, nil
}

func (s *Service) EndSeason(ctx context.Context, caller User, id int64) (TaxSeason, error) {
	if err := requireAdmin(caller); err != nil {
		return TaxSeason{}, err
	}
	var out TaxSeason
	err := s.store.Do(ctx, []store.Name{store.TaxSeasons}, func(rw store.ReadWriter) error {
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(seasons, func(t TaxSeason) bool { return t.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: tax season %d", ErrNotFound, id)
		}
		if !seasons[i].Active {
			return fmt.Errorf("%w: tax season %d already ended", ErrInvalidState, id)
		}
		now := s.clock()
		seasons[i].Active = false
		seasons[i].EndedAt = &now
		out = seasons[i]
		return store.Put(ctx, rw, store.TaxSeasons, seasons)
	})
	if err != nil {
		return TaxSeason{}, err
	}
	s.log.Info("tax season ended", "id", id)
	return out, nil
}

// ApplyPeriodicToAll runs every active season over every principal except
// the central bank, in sequence, and moves the total to the central bank.
// The run is logged as one aggregate debit and one aggregate credit sharing
// a group id.
func (s *Service) ApplyPeriodicToAll(ctx context.Context, caller User) (TaxRun, error) {
	if err := requireAdmin(caller); err != nil {
		return TaxRun{}, err
	}
	names := []store.Name{store.TaxSeasons, store.Accounts, store.Transactions}
	var run TaxRun
	err := s.store.Do(ctx, names, func(rw store.ReadWriter) error {
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		if err != nil {
			return err
		}
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}

		principals := make([]string, 0, len(b.balances))
		for p := range b.balances {
			if p != CentralBank {
				principals = append(principals, p)
			}
		}
		slices.Sort(principals)

		total := decimal.Zero
		taxed := map[string]struct{}{}
		for _, ts := range seasons {
			if !ts.Active {
				continue
			}
			run.Seasons++
			for _, p := range principals {
				tax := money.Percent(b.balances[p], ts.Rate)
				if !tax.IsPositive() {
					continue
				}
				if err := b.debit(p, tax); err != nil {
					return err
				}
				total = total.Add(tax)
				taxed[p] = struct{}{}
			}
		}
		run.Total = total
		run.Principals = len(taxed)
		if !total.IsPositive() {
			return nil
		}
		if err := b.credit(CentralBank, total); err != nil {
			return err
		}
		run.GroupID = uuid.NewString()
		b.record(Transaction{
			User:        AllUsers,
			Amount:      total.Neg(),
			Type:        TxDebit,
			Description: "Periodic tax collection",
			GroupID:     run.GroupID,
		})
		b.record(Transaction{
			User:        CentralBank,
			Amount:      total,
			Type:        TxCredit,
			Description: "Periodic tax collection",
			GroupID:     run.GroupID,
		})
		return b.save(ctx, rw)
	})
	if err != nil {
		return TaxRun{}, err
	}
	s.log.Info("periodic tax applied", "by", caller.Username, "total", run.Total.String(), "seasons", run.Seasons, "principals", run.Principals)
	return run, nil
}
