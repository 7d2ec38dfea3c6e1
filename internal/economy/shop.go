package economy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"microbank/internal/money"
	"microbank/internal/store"
)

func (s *Service) Items(ctx context.Context) ([]ShopItem, error) {
	var out []ShopItem
	err := s.store.Do(ctx, []store.Name{store.Shop}, func(rw store.ReadWriter) error {
		items, err := store.Get[[]ShopItem](ctx, rw, store.Shop)
		out = items
		return err
	})
	return out, err
}

func validItem(name string, price decimal.Decimal) (string, decimal.Decimal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", decimal.Zero, fmt.Errorf("%w: item name is required", ErrValidation)
	}
	price = money.Round(price)
	if !price.IsPositive() {
		return "", decimal.Zero, fmt.Errorf("%w: item price must be positive", ErrValidation)
	}
	return name, price, nil
}

func (s *Service) AddItem(ctx context.Context, caller User, name string, price decimal.Decimal) (ShopItem, error) {
	if err := requireAdmin(caller); err != nil {
		return ShopItem{}, err
	}
	name, price, err := validItem(name, price)
	if err != nil {
		return ShopItem{}, err
	}
	var out ShopItem
	err = s.store.Do(ctx, []store.Name{store.Shop}, func(rw store.ReadWriter) error {
		items, err := store.Get[[]ShopItem](ctx, rw, store.Shop)
		if err != nil {
			return err
		}
		out = ShopItem{ID: nextID(items, func(it ShopItem) int64 { return it.ID }), Name: name, Price: price}
		return store.Put(ctx, rw, store.Shop, append(items, out))
	})
	return out, err
}

func (s *Service) EditItem(ctx context.Context, caller User, id int64, name string, price decimal.Decimal) (ShopItem, error) {
	if err := requireAdmin(caller); err != nil {
		return ShopItem{}, err
	}
	name, price, err := validItem(name, price)
	if err != nil {
		return ShopItem{}, err
	}
	var out ShopItem
	err = s.store.Do(ctx, []store.Name{store.Shop}, func(rw store.ReadWriter) error {
		items, err := store.Get[[]ShopItem](ctx, rw, store.Shop)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(items, func(it ShopItem) bool { return it.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: shop item %d", ErrNotFound, id)
		}
		items[i].Name = name
		items[i].Price = price
		out = items[i]
		return store.Put(ctx, rw, store.Shop, items)
	})
	return out, err
}

// DeleteItem removes an item from the catalog. Orders keep their snapshot.
func (s *Service) DeleteItem(ctx context.Context, caller User, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return s.store.Do(ctx, []store.Name{store.Shop}, func(rw store.ReadWriter) error {
		items, err := store.Get[[]ShopItem](ctx, rw, store.Shop)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(items, func(it ShopItem) bool { return it.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: shop item %d", ErrNotFound, id)
		}
		return store.Put(ctx, rw, store.Shop, slices.Delete(items, i, i+1))
	})
}

// PlaceOrder escrows the item price from the user and opens a pending order.
func (s *Service) PlaceOrder(ctx context.Context, user string, itemID int64) (Order, error) {
	names := []store.Name{store.Shop, store.Orders, store.Accounts, store.Transactions}
	var out Order
	err := s.store.Do(ctx, names, func(rw store.ReadWriter) error {
		items, err := store.Get[[]ShopItem](ctx, rw, store.Shop)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(items, func(it ShopItem) bool { return it.ID == itemID })
		if i < 0 {
			return fmt.Errorf("%w: shop item %d", ErrNotFound, itemID)
		}
		item := items[i]
		orders, err := store.Get[[]Order](ctx, rw, store.Orders)
		if err != nil {
			return err
		}
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}
		if err := b.debit(user, item.Price); err != nil {
			return err
		}
		out = Order{
			ID:        nextID(orders, func(o Order) int64 { return o.ID }),
			User:      user,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Price:     item.Price,
			Status:    OrderPending,
			Timestamp: b.now,
		}
		b.record(Transaction{
			User:        user,
			Amount:      item.Price.Neg(),
			Type:        TxOrder,
			Description: "Order: " + item.Name,
			OrderID:     out.ID,
		})
		if err := store.Put(ctx, rw, store.Orders, append(orders, out)); err != nil {
			return err
		}
		return b.save(ctx, rw)
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order placed", "order", out.ID, "user", user, "item", out.ItemName)
	if s.notifier != nil {
		subject := fmt.Sprintf("Order #%d awaiting approval", out.ID)
		body := fmt.Sprintf("%s ordered %s for %s", out.User, out.ItemName, out.Price.StringFixed(2))
		if err := s.notifier.Notify(ctx, subject, body); err != nil {
			s.log.Warn("order notification failed", "order", out.ID, "err", err)
		}
	}
	return out, nil
}

// Decide settles a pending order. A decline refunds the escrowed price; an
// approval keeps it.
func (s *Service) Decide(ctx context.Context, caller User, orderID int64, decision OrderStatus) (Order, error) {
	if err := requireAdmin(caller); err != nil {
		return Order{}, err
	}
	if decision != OrderApproved && decision != OrderDeclined {
		return Order{}, fmt.Errorf("%w: decision must be approved or declined", ErrValidation)
	}
	names := []store.Name{store.Orders, store.Accounts, store.Transactions}
	var out Order
	err := s.store.Do(ctx, names, func(rw store.ReadWriter) error {
		orders, err := store.Get[[]Order](ctx, rw, store.Orders)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(orders, func(o Order) bool { return o.ID == orderID })
		if i < 0 {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		if orders[i].Status != OrderPending {
			return fmt.Errorf("%w: order %d is already %s", ErrInvalidState, orderID, orders[i].Status)
		}
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}
		if decision == OrderDeclined {
			if err := b.credit(orders[i].User, orders[i].Price); err != nil {
				return err
			}
			b.record(Transaction{
				User:        orders[i].User,
				Amount:      orders[i].Price,
				Type:        TxRefund,
				Description: "Refund: " + orders[i].ItemName,
				OrderID:     orderID,
			})
		}
		now := b.now
		orders[i].Status = decision
		orders[i].DecidedAt = &now
		orders[i].DecidedBy = caller.Username
		out = orders[i]
		if err := store.Put(ctx, rw, store.Orders, orders); err != nil {
			return err
		}
		return b.save(ctx, rw)
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order decided", "order", orderID, "status", decision, "by", caller.Username)
	return out, nil
}

// Orders lists every order for an admin and the caller's own otherwise.
func (s *Service) Orders(ctx context.Context, caller User) ([]Order, error) {
	var out []Order
	err := s.store.Do(ctx, []store.Name{store.Orders}, func(rw store.ReadWriter) error {
		orders, err := store.Get[[]Order](ctx, rw, store.Orders)
		if err != nil {
			return err
		}
		out = make([]Order, 0, len(orders))
		for _, o := range orders {
			if caller.IsAdmin() || o.User == caller.Username {
				out = append(out, o)
			}
		}
		return nil
	})
	return out, err
}
