// Package economy implements the ledger and the engines that move money:
// the stock market, tax seasons, the shop order workflow and mini-games.
// Every operation reads the documents it needs inside one store.Do call and
// writes them back together with its transaction records.
package economy

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"microbank/internal/pricefeed"
	"microbank/internal/store"
)

// Rand is the random source behind drift and mini-games.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Notifier tells administrators about work waiting for them.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type Service struct {
	store    store.Backend
	log      *slog.Logger
	now      func() time.Time
	prices   pricefeed.Publisher
	notifier Notifier

	mu   sync.Mutex
	rand Rand

	defaultTaxRate decimal.Decimal
	bankSeed       decimal.Decimal
	hashCost       int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRand(r Rand) Option {
	return func(s *Service) { s.rand = r }
}

// WithDefaultTaxRate sets the percentage used when no windowed season
// covers the current time.
func WithDefaultTaxRate(rate decimal.Decimal) Option {
	return func(s *Service) { s.defaultTaxRate = rate }
}

func WithCentralBankSeed(amount decimal.Decimal) Option {
	return func(s *Service) { s.bankSeed = amount }
}

func WithPublisher(p pricefeed.Publisher) Option {
	return func(s *Service) { s.prices = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithHashCost sets the bcrypt cost for new secret codes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(backend store.Backend, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:          backend,
		log:            logger,
		now:            time.Now,
		prices:         pricefeed.Discard,
		rand:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d62)),
		defaultTaxRate: decimal.NewFromInt(10),
		bankSeed:       decimal.NewFromInt(100_000),
		hashCost:       bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.IntN(n)
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func requireAdmin(caller User) error {
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireAdmin fails with ErrForbidden unless caller has the admin role.
func (s *Service) RequireAdmin(caller User) error {
	return requireAdmin(caller)
}

func nextID[T any](items []T, id func(T) int64) int64 {
	var max int64
	for _, it := range items {
		if v := id(it); v > max {
			max = v
		}
	}
	return max + 1
}
