package economy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"microbank/internal/money"
	"microbank/internal/pricefeed"
	"microbank/internal/store"
)

const maxDrift = 0.05

var one = decimal.NewFromInt(1)

type portfolios map[string]map[string]int64

func findStock(stocks []Stock, symbol string) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for i := range stocks {
		if stocks[i].Symbol == symbol {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: stock %q", ErrNotFound, symbol)
}

// pushHistory records price and keeps only the newest HistoryLimit entries.
func (st *Stock) pushHistory(price decimal.Decimal) {
	st.Price = price
	st.History = append(st.History, price)
	if n := len(st.History); n > HistoryLimit {
		st.History = append([]decimal.Decimal(nil), st.History[n-HistoryLimit:]...)
	}
}

func validQuantity(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	return nil
}

func (s *Service) ListStocks(ctx context.Context) ([]Stock, error) {
	var out []Stock
	err := s.store.Do(ctx, []store.Name{store.Stocks}, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		out = stocks
		return err
	})
	return out, err
}

func (s *Service) Stock(ctx context.Context, symbol string) (Stock, error) {
	stocks, err := s.ListStocks(ctx)
	if err != nil {
		return Stock{}, err
	}
	i, err := findStock(stocks, symbol)
	if err != nil {
		return Stock{}, err
	}
	return stocks[i], nil
}

// Portfolio values a user's holdings at current prices, ordered by symbol.
func (s *Service) Portfolio(ctx context.Context, user string) ([]Holding, error) {
	var out []Holding
	err := s.store.Do(ctx, []store.Name{store.Portfolios, store.Stocks}, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		if err != nil {
			return err
		}
		pf, err := store.Get[portfolios](ctx, rw, store.Portfolios)
		if err != nil {
			return err
		}
		out = []Holding{}
		for symbol, qty := range pf[user] {
			h := Holding{Symbol: symbol, Quantity: qty}
			if i, err := findStock(stocks, symbol); err == nil {
				h.Name = stocks[i].Name
				h.Price = stocks[i].Price
				h.Value = money.Times(stocks[i].Price, qty)
			}
			out = append(out, h)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return nil
	})
	return out, err
}

var tradeDocs = []store.Name{store.Accounts, store.Transactions, store.Portfolios, store.Stocks}

func (s *Service) Buy(ctx context.Context, user, symbol string, qty int64) (Trade, error) {
	if err := validQuantity(qty); err != nil {
		return Trade{}, err
	}
	var out Trade
	err := s.store.Do(ctx, tradeDocs, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		if err != nil {
			return err
		}
		i, err := findStock(stocks, symbol)
		if err != nil {
			return err
		}
		st := stocks[i]
		pf, err := store.Get[portfolios](ctx, rw, store.Portfolios)
		if err != nil {
			return err
		}
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}

		total := money.Times(st.Price, qty)
		if err := b.debit(user, total); err != nil {
			return err
		}
		if pf == nil {
			pf = portfolios{}
		}
		if pf[user] == nil {
			pf[user] = map[string]int64{}
		}
		pf[user][st.Symbol] += qty

		tx := b.record(Transaction{
			User:          user,
			Amount:        total.Neg(),
			Type:          TxBuy,
			Description:   fmt.Sprintf("Bought %d %s", qty, st.Symbol),
			StockSymbol:   st.Symbol,
			Quantity:      qty,
			PricePerStock: decPtr(st.Price),
		})
		if err := store.Put(ctx, rw, store.Portfolios, pf); err != nil {
			return err
		}
		if err := b.save(ctx, rw); err != nil {
			return err
		}
		out = Trade{Transaction: tx, Balance: b.balances[user], Holding: pf[user][st.Symbol]}
		return nil
	})
	if err != nil {
		return Trade{}, err
	}
	s.log.Info("stock bought", "user", user, "symbol", out.Transaction.StockSymbol, "qty", qty, "total", out.Transaction.Amount.Neg().String())
	return out, nil
}

// Sell credits the user the gross price less tax at the event-time rate and
// routes the tax to the central bank.
func (s *Service) Sell(ctx context.Context, user, symbol string, qty int64) (Trade, error) {
	if err := validQuantity(qty); err != nil {
		return Trade{}, err
	}
	names := append([]store.Name{store.TaxSeasons}, tradeDocs...)
	var out Trade
	err := s.store.Do(ctx, names, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		if err != nil {
			return err
		}
		i, err := findStock(stocks, symbol)
		if err != nil {
			return err
		}
		st := stocks[i]
		pf, err := store.Get[portfolios](ctx, rw, store.Portfolios)
		if err != nil {
			return err
		}
		held := pf[user][st.Symbol]
		if held < qty {
			return fmt.Errorf("%w: %s holds %d %s, wants to sell %d", ErrInsufficientHoldings, user, held, st.Symbol, qty)
		}
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		if err != nil {
			return err
		}
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}

		gross := money.Times(st.Price, qty)
		tax := money.Percent(gross, effectiveRate(seasons, b.now, s.defaultTaxRate))
		net := gross.Sub(tax)

		if net.IsPositive() {
			if err := b.credit(user, net); err != nil {
				return err
			}
		} else if _, err := b.balance(user); err != nil {
			return err
		}
		if tax.IsPositive() {
			if err := b.credit(CentralBank, tax); err != nil {
				return err
			}
		}
		if held == qty {
			delete(pf[user], st.Symbol)
		} else {
			pf[user][st.Symbol] = held - qty
		}

		tx := b.record(Transaction{
			User:          user,
			Amount:        net,
			Type:          TxSell,
			Description:   fmt.Sprintf("Sold %d %s", qty, st.Symbol),
			StockSymbol:   st.Symbol,
			Quantity:      qty,
			PricePerStock: decPtr(st.Price),
			TaxPaid:       decPtr(tax),
		})
		if err := store.Put(ctx, rw, store.Portfolios, pf); err != nil {
			return err
		}
		if err := b.save(ctx, rw); err != nil {
			return err
		}
		out = Trade{Transaction: tx, Balance: b.balances[user], Holding: pf[user][st.Symbol]}
		return nil
	})
	if err != nil {
		return Trade{}, err
	}
	s.log.Info("stock sold", "user", user, "symbol", out.Transaction.StockSymbol, "qty", qty, "net", out.Transaction.Amount.String())
	return out, nil
}

func (s *Service) SetPrice(ctx context.Context, caller User, symbol string, price decimal.Decimal) (Stock, error) {
	if err := requireAdmin(caller); err != nil {
		return Stock{}, err
	}
	price = money.Round(price)
	if !price.IsPositive() {
		return Stock{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	var out Stock
	err := s.store.Do(ctx, []store.Name{store.Stocks}, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		if err != nil {
			return err
		}
		i, err := findStock(stocks, symbol)
		if err != nil {
			return err
		}
		stocks[i].pushHistory(price)
		out = stocks[i]
		return store.Put(ctx, rw, store.Stocks, stocks)
	})
	if err != nil {
		return Stock{}, err
	}
	s.publish(ctx, []Stock{out})
	return out, nil
}

// Drift reprices every stock by an independent uniform change within ±5%,
// never going below one unit. Balances are untouched.
func (s *Service) Drift(ctx context.Context) ([]Stock, error) {
	var out []Stock
	err := s.store.Do(ctx, []store.Name{store.Stocks}, func(rw store.ReadWriter) error {
		stocks, err := store.Get[[]Stock](ctx, rw, store.Stocks)
		if err != nil {
			return err
		}
		for i := range stocks {
			change := (s.float64()*2 - 1) * maxDrift
			next := stocks[i].Price.Mul(one.Add(decimal.NewFromFloat(change)))
			if next.LessThan(one) {
				next = one
			}
			stocks[i].pushHistory(money.Round(next))
		}
		out = stocks
		return store.Put(ctx, rw, store.Stocks, stocks)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("prices drifted", "stocks", len(out))
	s.publish(ctx, out)
	return out, nil
}

func (s *Service) publish(ctx context.Context, stocks []Stock) {
	if s.prices == nil || len(stocks) == 0 {
		return
	}
	now := s.clock()
	ticks := make([]pricefeed.Tick, 0, len(stocks))
	for _, st := range stocks {
		ticks = append(ticks, pricefeed.Tick{Symbol: st.Symbol, Price: st.Price, At: now})
	}
	if err := s.prices.Publish(ctx, ticks); err != nil {
		s.log.Warn("publish price ticks failed", "err", err)
	}
}
