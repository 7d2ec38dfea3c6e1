// Package store persists the economy as a fixed set of named JSON documents.
// Every operation reads and writes whole documents inside Backend.Do, which
// gives the caller exclusive access to the documents it names.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

type Name string

const (
	Users        Name = "users"
	Accounts     Name = "accounts"
	Portfolios   Name = "portfolios"
	Transactions Name = "transactions"
	Shop         Name = "shop"
	Orders       Name = "orders"
	Stocks       Name = "stocks"
	TaxSeasons   Name = "taxseasons"
)

// All lists every document the economy uses.
var All = []Name{Users, Accounts, Portfolios, Transactions, Shop, Orders, Stocks, TaxSeasons}

var (
	ErrNotFound   = errors.New("document not found")
	ErrUndeclared = errors.New("document not declared for this operation")
)

type ReadWriter interface {
	Read(ctx context.Context, name Name) ([]byte, error)
	Write(ctx context.Context, name Name, body []byte) error
}

type Backend interface {
	// Do runs fn with exclusive access to names. Writes made through rw
	// become visible together when fn returns nil and are discarded
	// otherwise.
	Do(ctx context.Context, names []Name, fn func(rw ReadWriter) error) error
	Close() error
}

// Get decodes the named document into a T.
func Get[T any](ctx context.Context, rw ReadWriter, name Name) (T, error) {
	var out T
	raw, err := rw.Read(ctx, name)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

func Put[T any](ctx context.Context, rw ReadWriter, name Name, v T) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return rw.Write(ctx, name, raw)
}

// lockOrder returns names sorted and deduplicated. Every backend acquires
// document locks in this order so overlapping operations cannot deadlock.
func lockOrder(names []Name) []Name {
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}

// staged buffers writes until the operation finishes.
type staged struct {
	allowed map[Name]struct{}
	read    func(ctx context.Context, name Name) ([]byte, error)
	writes  map[Name][]byte
}

func newStaged(names []Name, read func(ctx context.Context, name Name) ([]byte, error)) *staged {
	allowed := make(map[Name]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &staged{allowed: allowed, read: read, writes: map[Name][]byte{}}
}

func (s *staged) Read(ctx context.Context, name Name) ([]byte, error) {
	if _, ok := s.allowed[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	if raw, ok := s.writes[name]; ok {
		return raw, nil
	}
	return s.read(ctx, name)
}

func (s *staged) Write(_ context.Context, name Name, body []byte) error {
	if _, ok := s.allowed[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	s.writes[name] = slices.Clone(body)
	return nil
}

// pending returns staged writes in lock order.
func (s *staged) pending() []Name {
	names := make([]Name, 0, len(s.writes))
	for n := range s.writes {
		names = append(names, n)
	}
	return lockOrder(names)
}
