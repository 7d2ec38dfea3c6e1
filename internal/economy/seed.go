package economy

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"microbank/internal/store"
)

const defaultCode = "0000"

var (
	seedUsers = []struct {
		name string
		role Role
	}{
		{"admin", RoleAdmin},
		{"alice", RoleUser},
		{"bob", RoleUser},
	}

	seedStocks = []struct {
		symbol, name string
		price        int64
	}{
		{"SAFE", "SafeCorp", 100},
		{"BANK", "Bank Holdings", 150},
		{"TECH", "TechNova", 200},
		{"FOOD", "FoodMart", 120},
		{"AUTO", "AutoWorks", 80},
		{"HEALTH", "HealthPlus", 90},
		{"ENERGY", "EnergyGrid", 130},
		{"RETAIL", "RetailHub", 110},
		{"MEDIA", "MediaWave", 140},
		{"FINANCE", "FinanceOne", 160},
	}

	seedItems = []ShopItem{
		{ID: 1, Name: "Coffee", Price: decimal.RequireFromString("2.50")},
		{ID: 2, Name: "Notebook", Price: decimal.RequireFromString("5.00")},
		{ID: 3, Name: "Pen", Price: decimal.RequireFromString("1.25")},
	}

	startingBalance = decimal.NewFromInt(1000)
)

// Seed writes default contents for every document that does not exist yet.
// Existing documents are left alone, so it is safe to call on every start.
func (s *Service) Seed(ctx context.Context) error {
	var seeded []string
	err := s.store.Do(ctx, store.All, func(rw store.ReadWriter) error {
		for _, name := range store.All {
			_, err := rw.Read(ctx, name)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			v, err := s.defaultDocument(name)
			if err != nil {
				return err
			}
			if err := store.Put(ctx, rw, name, v); err != nil {
				return err
			}
			seeded = append(seeded, string(name))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(seeded) > 0 {
		s.log.Info("seeded documents", "documents", seeded)
	}
	return nil
}

func (s *Service) defaultDocument(name store.Name) (any, error) {
	switch name {
	case store.Users:
		hash, err := s.hashCode(defaultCode)
		if err != nil {
			return nil, err
		}
		users := make([]User, 0, len(seedUsers))
		for _, u := range seedUsers {
			users = append(users, User{Username: u.name, SecretHash: hash, Role: u.role})
		}
		return users, nil
	case store.Accounts:
		balances := map[string]decimal.Decimal{CentralBank: s.bankSeed}
		for _, u := range seedUsers {
			balances[u.name] = startingBalance
		}
		return balances, nil
	case store.Portfolios:
		return portfolios{}, nil
	case store.Stocks:
		stocks := make([]Stock, 0, len(seedStocks))
		for _, st := range seedStocks {
			price := decimal.NewFromInt(st.price)
			stocks = append(stocks, Stock{Symbol: st.symbol, Name: st.name, Price: price, History: []decimal.Decimal{price}})
		}
		return stocks, nil
	case store.Shop:
		return append([]ShopItem(nil), seedItems...), nil
	case store.Transactions:
		return []Transaction{}, nil
	case store.Orders:
		return []Order{}, nil
	case store.TaxSeasons:
		return []TaxSeason{}, nil
	}
	return nil, errors.New("no default for document " + string(name))
}
