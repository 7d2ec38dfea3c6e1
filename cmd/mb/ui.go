package main

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	gomoney "github.com/Rhymond/go-money"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"microbank/internal/cli"
	"microbank/internal/economy"
	"microbank/internal/money"
)

const currencyCode = "MBC"

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func init() {
	gomoney.AddCurrency(currencyCode, "¤", "$1", ".", ",", money.Places)
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func formatAmount(d decimal.Decimal) string {
	return gomoney.New(money.Cents(d), currencyCode).Display()
}

func colorizeAmount(d decimal.Decimal) string {
	s := formatAmount(d)
	switch {
	case d.IsPositive():
		return success.Sprint("+" + s)
	case d.IsNegative():
		return danger.Sprint(s)
	default:
		return s
	}
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptCode reads a 4-digit code without echo when stdin is a terminal.
func promptCode(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		code := strings.TrimSpace(string(raw))
		if len(code) == 4 && strings.Trim(code, "0123456789") == "" {
			return code, nil
		}
		printWarn("Code must be exactly 4 digits.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptAmount(label string) (decimal.Decimal, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return decimal.Zero, err
		}
		d, err := money.Parse(text)
		if err != nil {
			printWarn(err.Error())
			continue
		}
		return d, nil
	}
}

func promptDate(label string) (*time.Time, error) {
	for {
		text, err := promptOptional(label + " (YYYY-MM-DD, blank for none)")
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		t, err := time.Parse(time.DateOnly, text)
		if err != nil {
			printWarn("Enter a date like 2026-01-31.")
			continue
		}
		return &t, nil
	}
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}

func amountFromArgOrPrompt(args []string, idx int, label string) (decimal.Decimal, error) {
	if len(args) > idx {
		return money.Parse(strings.TrimSpace(args[idx]))
	}
	return promptAmount(label)
}

func symbolFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.ToUpper(strings.TrimSpace(args[0])), nil
	}
	symbol, err := promptRequired("Symbol")
	if err != nil {
		return "", err
	}
	return strings.ToUpper(symbol), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func renderBalances(balances map[string]decimal.Decimal, self string) {
	accent.Println("\n== BALANCES ==")
	if len(balances) == 1 {
		for name, bal := range balances {
			fmt.Printf("%-16s %16s\n", name, formatAmount(bal))
		}
		return
	}
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Printf("%-16s %16s\n", "PRINCIPAL", "BALANCE")
	for _, name := range names {
		line := fmt.Sprintf("%-16s %16s", name, formatAmount(balances[name]))
		if name == self {
			accent.Println(line)
			continue
		}
		fmt.Println(line)
	}
}

func renderTransactions(txs []economy.Transaction) {
	accent.Println("\n== TRANSACTIONS ==")
	if len(txs) == 0 {
		printInfo("No transactions yet.")
		return
	}
	fmt.Printf("%-6s %-17s %-12s %-13s %14s  %s\n", "ID", "WHEN", "USER", "TYPE", "AMOUNT", "DETAIL")
	for _, tx := range txs {
		fmt.Printf("%-6d %-17s %-12s %-13s %14s  %s\n",
			tx.ID,
			tx.Timestamp.Local().Format("2006-01-02 15:04"),
			truncate(tx.User, 12),
			tx.Type,
			colorizeAmount(tx.Amount),
			txDetail(tx),
		)
	}
}

func txDetail(tx economy.Transaction) string {
	var parts []string
	if tx.Description != "" {
		parts = append(parts, tx.Description)
	}
	if tx.StockSymbol != "" {
		parts = append(parts, fmt.Sprintf("%d %s", tx.Quantity, tx.StockSymbol))
	}
	if tx.PricePerStock != nil {
		parts = append(parts, "@ "+formatAmount(*tx.PricePerStock))
	}
	if tx.TaxPaid != nil && !tx.TaxPaid.IsZero() {
		parts = append(parts, "tax "+formatAmount(*tx.TaxPaid))
	}
	if tx.OrderID != 0 {
		parts = append(parts, fmt.Sprintf("order #%d", tx.OrderID))
	}
	return truncate(strings.Join(parts, " "), 60)
}

func renderStocks(stocks []economy.Stock) {
	accent.Println("\n== MARKET ==")
	fmt.Printf("%-8s %-22s %14s %10s\n", "SYMBOL", "NAME", "PRICE", "CHANGE")
	for _, st := range stocks {
		fmt.Printf("%-8s %-22s %14s %10s\n", st.Symbol, truncate(st.Name, 22), formatAmount(st.Price), lastChange(st))
	}
}

// lastChange is the percentage move between the two most recent prices.
func lastChange(st economy.Stock) string {
	n := len(st.History)
	if n < 2 || st.History[n-2].IsZero() {
		return "-"
	}
	prev := st.History[n-2]
	pct := st.History[n-1].Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	switch {
	case pct.IsPositive():
		return success.Sprintf("+%s%%", pct.StringFixed(2))
	case pct.IsNegative():
		return danger.Sprintf("%s%%", pct.StringFixed(2))
	default:
		return "0.00%"
	}
}

func renderStock(st economy.Stock) {
	accent.Printf("\n== %s (%s) ==\n", st.Symbol, st.Name)
	fmt.Printf("Price:   %s\n", formatAmount(st.Price))
	fmt.Printf("Change:  %s\n", lastChange(st))
	if len(st.History) == 0 {
		return
	}
	lo, hi := st.History[0], st.History[0]
	for _, p := range st.History {
		lo = decimal.Min(lo, p)
		hi = decimal.Max(hi, p)
	}
	fmt.Printf("Range:   %s - %s over %d prices\n", formatAmount(lo), formatAmount(hi), len(st.History))
	fmt.Printf("Trend:   %s\n", sparkline(st.History, 40))
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(history []decimal.Decimal, width int) string {
	if len(history) > width {
		history = history[len(history)-width:]
	}
	if len(history) == 0 {
		return ""
	}
	lo, hi := history[0], history[0]
	for _, p := range history {
		lo = decimal.Min(lo, p)
		hi = decimal.Max(hi, p)
	}
	span := hi.Sub(lo)
	var b strings.Builder
	for _, p := range history {
		idx := 0
		if span.IsPositive() {
			idx = int(p.Sub(lo).Div(span).Mul(decimal.NewFromInt(int64(len(sparkRunes) - 1))).IntPart())
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func renderTrade(side string, trade economy.Trade) {
	tx := trade.Transaction
	msg := fmt.Sprintf("%s %d %s for %s.", side, tx.Quantity, tx.StockSymbol, formatAmount(tx.Amount.Abs()))
	if tx.TaxPaid != nil && !tx.TaxPaid.IsZero() {
		msg += fmt.Sprintf(" Tax withheld: %s.", formatAmount(*tx.TaxPaid))
	}
	printSuccess(msg)
	fmt.Printf("Balance: %s  Holding: %d\n", formatAmount(trade.Balance), trade.Holding)
}

func renderPortfolio(holdings []economy.Holding) {
	accent.Println("\n== PORTFOLIO ==")
	if len(holdings) == 0 {
		printInfo("No holdings yet.")
		return
	}
	total := decimal.Zero
	fmt.Printf("%-8s %-22s %8s %14s %16s\n", "SYMBOL", "NAME", "QTY", "PRICE", "VALUE")
	for _, h := range holdings {
		total = total.Add(h.Value)
		fmt.Printf("%-8s %-22s %8d %14s %16s\n", h.Symbol, truncate(h.Name, 22), h.Quantity, formatAmount(h.Price), formatAmount(h.Value))
	}
	fmt.Printf("%-8s %-22s %8s %14s %16s\n", "", "", "", "TOTAL", formatAmount(total))
}

func renderItems(items []economy.ShopItem) {
	accent.Println("\n== SHOP ==")
	if len(items) == 0 {
		printInfo("The shop is empty.")
		return
	}
	fmt.Printf("%-6s %-28s %12s\n", "ID", "ITEM", "PRICE")
	for _, it := range items {
		fmt.Printf("%-6d %-28s %12s\n", it.ID, truncate(it.Name, 28), formatAmount(it.Price))
	}
}

func renderOrders(orders []economy.Order) {
	accent.Println("\n== ORDERS ==")
	if len(orders) == 0 {
		printInfo("No orders.")
		return
	}
	fmt.Printf("%-6s %-12s %-22s %12s %-9s %-17s\n", "ID", "USER", "ITEM", "PRICE", "STATUS", "PLACED")
	for _, o := range orders {
		fmt.Printf("%-6d %-12s %-22s %12s %-9s %-17s\n",
			o.ID,
			truncate(o.User, 12),
			truncate(o.ItemName, 22),
			formatAmount(o.Price),
			statusColor(o.Status),
			o.Timestamp.Local().Format("2006-01-02 15:04"),
		)
	}
}

func statusColor(s economy.OrderStatus) string {
	switch s {
	case economy.OrderApproved:
		return success.Sprintf("%-9s", s)
	case economy.OrderDeclined:
		return danger.Sprintf("%-9s", s)
	default:
		return warn.Sprintf("%-9s", s)
	}
}

func renderSeasons(out cli.Seasons) {
	accent.Println("\n== TAX ==")
	fmt.Printf("Current rate: %s%%\n", out.CurrentRate.StringFixed(2))
	if len(out.Seasons) == 0 {
		printInfo("No tax seasons.")
		return
	}
	fmt.Printf("%-5s %-20s %8s %-8s %-25s\n", "ID", "NAME", "RATE", "STATE", "APPLIES")
	for _, s := range out.Seasons {
		state := success.Sprintf("%-8s", "active")
		if !s.Active {
			state = neutral.Sprintf("%-8s", "ended")
		}
		applies := string(s.Frequency)
		if s.StartDate != nil && s.EndDate != nil {
			applies = s.StartDate.Format(time.DateOnly) + " to " + s.EndDate.Format(time.DateOnly)
		}
		fmt.Printf("%-5d %-20s %7s%% %s %-25s\n", s.ID, truncate(s.Name, 20), s.Rate.StringFixed(2), state, applies)
	}
}

func renderGames(games []economy.Game) {
	accent.Println("\n== MINI-GAMES ==")
	fmt.Printf("%-4s %-14s %s\n", "ID", "GAME", "GUESS")
	for _, g := range games {
		guess := g.Guess
		if guess == "" {
			guess = "-"
		}
		fmt.Printf("%-4d %-14s %s\n", g.ID, g.Name, guess)
	}
}

func renderGameResult(res economy.GameResult) {
	fmt.Println(res.Outcome)
	if !res.Won {
		printWarn("No luck this time.")
		return
	}
	printSuccess(fmt.Sprintf("You won %s (tax %s, net %s).", formatAmount(res.Winning), formatAmount(res.TaxPaid), formatAmount(res.Net)))
}

func renderUsers(users []economy.User) {
	accent.Println("\n== USERS ==")
	fmt.Printf("%-16s %-6s\n", "USERNAME", "ROLE")
	for _, u := range users {
		fmt.Printf("%-16s %-6s\n", u.Username, u.Role)
	}
}
