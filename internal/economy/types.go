package economy

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CentralBank is the reserved principal that collects tax and funds
	// mini-game payouts.
	CentralBank = "CentralBank"
	// AllUsers labels the aggregate debit of a periodic tax run.
	AllUsers = "All Users"

	HistoryLimit = 100
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	Username   string `json:"username"`
	SecretHash string `json:"secretHash"`
	Role       Role   `json:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// System is the caller used by background jobs for admin-only operations.
var System = User{Username: "system", Role: RoleAdmin}

type TxType string

const (
	TxCredit      TxType = "credit"
	TxDebit       TxType = "debit"
	TxBuy         TxType = "buy"
	TxSell        TxType = "sell"
	TxOrder       TxType = "order"
	TxRefund      TxType = "refund"
	TxMinigameWin TxType = "minigame_win"
)

// Transaction is an immutable ledger entry. Amount is signed from the point
// of view of User.
type Transaction struct {
	ID            int64            `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	User          string           `json:"user"`
	Amount        decimal.Decimal  `json:"amount"`
	Type          TxType           `json:"type"`
	Description   string           `json:"description,omitempty"`
	StockSymbol   string           `json:"stockSymbol,omitempty"`
	Quantity      int64            `json:"quantity,omitempty"`
	PricePerStock *decimal.Decimal `json:"pricePerStock,omitempty"`
	TaxPaid       *decimal.Decimal `json:"taxPaid,omitempty"`
	GameID        int              `json:"gameId,omitempty"`
	Winning       *decimal.Decimal `json:"winning,omitempty"`
	OrderID       int64            `json:"orderId,omitempty"`
	// GroupID links the entries written by one periodic tax run.
	GroupID string `json:"groupId,omitempty"`
}

type Stock struct {
	Symbol  string            `json:"symbol"`
	Name    string            `json:"name"`
	Price   decimal.Decimal   `json:"price"`
	History []decimal.Decimal `json:"history"`
}

// Holding is one line of a user's portfolio valued at the current price.
type Holding struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

type ShopItem struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderApproved OrderStatus = "approved"
	OrderDeclined OrderStatus = "declined"
)

type Order struct {
	ID        int64           `json:"id"`
	User      string          `json:"user"`
	ItemID    int64           `json:"itemId"`
	ItemName  string          `json:"itemName"`
	Price     decimal.Decimal `json:"price"`
	Status    OrderStatus     `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	DecidedAt *time.Time      `json:"decidedAt,omitempty"`
	DecidedBy string          `json:"decidedBy,omitempty"`
}

type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// TaxSeason carries either a StartDate/EndDate window or a recurring
// Frequency. Ended seasons stay in the document with Active=false.
type TaxSeason struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Rate      decimal.Decimal `json:"rate"`
	Active    bool            `json:"active"`
	StartDate *time.Time      `json:"startDate,omitempty"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
	Frequency Frequency       `json:"frequency,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
}

func (t TaxSeason) windowed() bool {
	return t.StartDate != nil && t.EndDate != nil
}

func (t TaxSeason) covers(now time.Time) bool {
	return t.Active && t.windowed() && !now.Before(*t.StartDate) && !now.After(*t.EndDate)
}

// TaxRun summarises one periodic tax application.
type TaxRun struct {
	GroupID    string          `json:"groupId,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Seasons    int             `json:"seasons"`
	Principals int             `json:"principals"`
}

// Trade is the outcome of a buy or sell.
type Trade struct {
	Transaction Transaction     `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
	Holding     int64           `json:"holding"`
}

type GameResult struct {
	GameID      int             `json:"gameId"`
	Game        string          `json:"game"`
	Won         bool            `json:"won"`
	Outcome     string          `json:"outcome"`
	Winning     decimal.Decimal `json:"winning"`
	TaxPaid     decimal.Decimal `json:"taxPaid"`
	Net         decimal.Decimal `json:"net"`
	Transaction *Transaction    `json:"transaction,omitempty"`
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
