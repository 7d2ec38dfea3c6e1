package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"microbank/internal/economy"
	"microbank/internal/pricefeed"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session Session
}

func NewClient(baseURL string, session Session) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		Session: session,
	}
}

func (c *Client) Login(ctx context.Context) (Session, error) {
	var out struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := c.jsonRequest(ctx, http.MethodPost, "/v1/login", nil, &out); err != nil {
		return Session{}, err
	}
	s := c.Session
	s.Role = out.Role
	return s, nil
}

func (c *Client) ChangeCode(ctx context.Context, code string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/me/code", map[string]any{"code": code}, nil)
}

func (c *Client) Stocks(ctx context.Context) ([]economy.Stock, error) {
	var out struct {
		Stocks []economy.Stock `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", nil, &out)
	return out.Stocks, err
}

func (c *Client) Stock(ctx context.Context, symbol string) (economy.Stock, error) {
	var out economy.Stock
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks/"+url.PathEscape(symbol), nil, &out)
	return out, err
}

func (c *Client) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	var out struct {
		Balances map[string]decimal.Decimal `json:"balances"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/balances", nil, &out)
	return out.Balances, err
}

func (c *Client) Transactions(ctx context.Context) ([]economy.Transaction, error) {
	var out struct {
		Transactions []economy.Transaction `json:"transactions"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/transactions", nil, &out)
	return out.Transactions, err
}

func (c *Client) Portfolio(ctx context.Context) ([]economy.Holding, error) {
	var out struct {
		Holdings []economy.Holding `json:"holdings"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/portfolio", nil, &out)
	return out.Holdings, err
}

// Trade buys when side is "buy" and sells when it is "sell".
func (c *Client) Trade(ctx context.Context, side, symbol string, qty int64) (economy.Trade, error) {
	var out economy.Trade
	path := fmt.Sprintf("/v1/stocks/%s/%s", url.PathEscape(symbol), side)
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{"quantity": qty}, &out)
	return out, err
}

func (c *Client) ShopItems(ctx context.Context) ([]economy.ShopItem, error) {
	var out struct {
		Items []economy.ShopItem `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/shop/items", nil, &out)
	return out.Items, err
}

func (c *Client) PlaceOrder(ctx context.Context, itemID int64) (economy.Order, error) {
	var out economy.Order
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shop/orders", map[string]any{"itemId": itemID}, &out)
	return out, err
}

// Orders lists the caller's orders, or every order with all set.
func (c *Client) Orders(ctx context.Context, all bool) ([]economy.Order, error) {
	path := "/v1/shop/orders"
	if all {
		path = "/v1/admin/orders"
	}
	var out struct {
		Orders []economy.Order `json:"orders"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Orders, err
}

func (c *Client) Decide(ctx context.Context, orderID int64, status string) (economy.Order, error) {
	var out economy.Order
	path := fmt.Sprintf("/v1/admin/orders/%d/decision", orderID)
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{"status": status}, &out)
	return out, err
}

func (c *Client) AddItem(ctx context.Context, name string, price decimal.Decimal) (economy.ShopItem, error) {
	var out economy.ShopItem
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/shop/items", map[string]any{"name": name, "price": price}, &out)
	return out, err
}

func (c *Client) EditItem(ctx context.Context, id int64, name string, price decimal.Decimal) (economy.ShopItem, error) {
	var out economy.ShopItem
	path := fmt.Sprintf("/v1/admin/shop/items/%d", id)
	err := c.jsonRequest(ctx, http.MethodPut, path, map[string]any{"name": name, "price": price}, &out)
	return out, err
}

func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.jsonRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/admin/shop/items/%d", id), nil, nil)
}

type Seasons struct {
	Seasons     []economy.TaxSeason `json:"seasons"`
	CurrentRate decimal.Decimal     `json:"currentRate"`
}

func (c *Client) Seasons(ctx context.Context) (Seasons, error) {
	var out Seasons
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/tax/seasons", nil, &out)
	return out, err
}

func (c *Client) AddSeason(ctx context.Context, in map[string]any) (economy.TaxSeason, error) {
	var out economy.TaxSeason
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tax/seasons", in, &out)
	return out, err
}

func (c *Client) EndSeason(ctx context.Context, id int64) (economy.TaxSeason, error) {
	var out economy.TaxSeason
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/admin/tax/seasons/%d/end", id), nil, &out)
	return out, err
}

func (c *Client) ApplyTax(ctx context.Context) (economy.TaxRun, error) {
	var out economy.TaxRun
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/tax/apply", nil, &out)
	return out, err
}

func (c *Client) Play(ctx context.Context, gameID int, guess string) (economy.GameResult, error) {
	var out economy.GameResult
	var body any
	if guess != "" {
		body = map[string]any{"guess": guess}
	}
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/games/%d/play", gameID), body, &out)
	return out, err
}

func (c *Client) Games(ctx context.Context) ([]economy.Game, error) {
	var out struct {
		Games []economy.Game `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", nil, &out)
	return out.Games, err
}

func (c *Client) Users(ctx context.Context) ([]economy.User, error) {
	var out struct {
		Users []economy.User `json:"users"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/users", nil, &out)
	return out.Users, err
}

func (c *Client) Adjust(ctx context.Context, principal string, amount decimal.Decimal) (economy.Transaction, error) {
	var out economy.Transaction
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/balances/adjust", map[string]any{
		"principal": principal,
		"amount":    amount,
	}, &out)
	return out, err
}

func (c *Client) SetCode(ctx context.Context, username, code string) error {
	path := "/v1/admin/users/" + url.PathEscape(username) + "/code"
	return c.jsonRequest(ctx, http.MethodPost, path, map[string]any{"code": code}, nil)
}

func (c *Client) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) (economy.Stock, error) {
	var out economy.Stock
	path := "/v1/admin/stocks/" + url.PathEscape(symbol) + "/price"
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{"price": price}, &out)
	return out, err
}

func (c *Client) Drift(ctx context.Context) ([]economy.Stock, error) {
	var out struct {
		Stocks []economy.Stock `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/market/drift", nil, &out)
	return out.Stocks, err
}

// StreamURL is the websocket endpoint that pushes []pricefeed.Tick batches.
func (c *Client) StreamURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/v1/stocks/stream"
}

// Tick is re-exported so callers of the stream need only this package.
type Tick = pricefeed.Tick

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Session.Username != "" {
		req.SetBasicAuth(c.Session.Username, c.Session.Code)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
