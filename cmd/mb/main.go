package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "microbank/internal/cli"
	"microbank/internal/config"
	"microbank/internal/economy"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "mb",
		Short:        "Microbank command line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newCodeCmd(&apiBase),
		newBalanceCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newStocksCmd(&apiBase),
		newPortfolioCmd(&apiBase),
		newShopCmd(&apiBase),
		newTaxCmd(&apiBase),
		newGamesCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string, sess cl.Session) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), sess)
}

func sessionClient(apiBase *string) (*cl.Client, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("login required: %w", err)
	}
	return newClient(apiBase, sess), nil
}

// withClient runs fn with a logged-in client and a request timeout.
func withClient(cmd *cobra.Command, apiBase *string, fn func(ctx context.Context, client *cl.Client) error) error {
	client, err := sessionClient(apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, client)
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Login with your username and 4-digit code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) > 0 {
				username = strings.TrimSpace(args[0])
			} else {
				var err error
				if username, err = promptRequired("Username"); err != nil {
					return err
				}
			}
			code, err := promptCode("Code")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase, cl.Session{Username: username, Code: code})
			sess, err := client.Login(ctx)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s (%s).", sess.Username, sess.Role))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newCodeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Change your 4-digit code",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := promptCode("New code")
			if err != nil {
				return err
			}
			confirm, err := promptCode("Repeat new code")
			if err != nil {
				return err
			}
			if code != confirm {
				return fmt.Errorf("codes do not match")
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				if err := client.ChangeCode(ctx, code); err != nil {
					return err
				}
				client.Session.Code = code
				if err := cl.SaveSession(client.Session); err != nil {
					return err
				}
				printSuccess("Code changed.")
				return nil
			})
		},
	}
}

func newBalanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "balance",
		Short:   "Show your balance (admins see every principal)",
		Aliases: []string{"bal"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Balances(ctx)
				if err != nil {
					return err
				}
				renderBalances(out, client.Session.Username)
				return nil
			})
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "history",
		Short:   "Show your transactions (admins see the whole ledger)",
		Aliases: []string{"tx"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Transactions(ctx)
				if err != nil {
					return err
				}
				renderTransactions(out)
				return nil
			})
		},
	}
}

func newStocksCmd(apiBase *string) *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Stock market commands",
		Aliases: []string{"stock", "market"},
	}

	stocks.AddCommand(&cobra.Command{
		Use:   "list [SYMBOL]",
		Short: "List stocks or inspect one stock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase, cl.Session{})
			if len(args) == 0 {
				out, err := client.Stocks(ctx)
				if err != nil {
					return err
				}
				renderStocks(out)
				return nil
			}
			out, err := client.Stock(ctx, strings.ToUpper(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}
			renderStock(out)
			return nil
		},
	})
	stocks.AddCommand(newTradeCmd(apiBase, "buy", "Bought"))
	stocks.AddCommand(newTradeCmd(apiBase, "sell", "Sold"))
	stocks.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Watch live prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), newClient(apiBase, cl.Session{}))
		},
	})
	return stocks
}

func newTradeCmd(apiBase *string, side, done string) *cobra.Command {
	return &cobra.Command{
		Use:   side + " [symbol] [quantity]",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			qty, err := int64FromArgOrPrompt(args, 1, "Quantity")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				trade, err := client.Trade(ctx, side, symbol, qty)
				if err != nil {
					return err
				}
				renderTrade(done, trade)
				return nil
			})
		},
	}
}

func newPortfolioCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "portfolio",
		Short:   "Show your holdings at current prices",
		Aliases: []string{"pf"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Portfolio(ctx)
				if err != nil {
					return err
				}
				renderPortfolio(out)
				return nil
			})
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	shop := &cobra.Command{
		Use:   "shop",
		Short: "Browse the shop and place orders",
	}
	shop.AddCommand(&cobra.Command{
		Use:   "items",
		Short: "List shop items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase, cl.Session{}).ShopItems(ctx)
			if err != nil {
				return err
			}
			renderItems(out)
			return nil
		},
	})
	shop.AddCommand(&cobra.Command{
		Use:   "order [itemID]",
		Short: "Order an item; the price is charged now and refunded if declined",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				order, err := client.PlaceOrder(ctx, itemID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Order #%d placed for %s (%s). Waiting for approval.", order.ID, order.ItemName, formatAmount(order.Price)))
				return nil
			})
		},
	})
	shop.AddCommand(&cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Orders(ctx, false)
				if err != nil {
					return err
				}
				renderOrders(out)
				return nil
			})
		},
	})
	return shop
}

func newTaxCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tax",
		Short: "Show the current tax rate and tax seasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Seasons(ctx)
				if err != nil {
					return err
				}
				renderSeasons(out)
				return nil
			})
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	games := &cobra.Command{
		Use:   "games",
		Short: "Mini-games paid out by the central bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase, cl.Session{}).Games(ctx)
			if err != nil {
				return err
			}
			renderGames(out)
			return nil
		},
	}
	games.AddCommand(&cobra.Command{
		Use:   "play [gameID] [guess]",
		Short: "Play a mini-game",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Game ID")
			if err != nil {
				return err
			}
			var guess string
			switch {
			case len(args) > 1:
				guess = args[1]
			case id == economy.GameGuessNumber:
				guess, err = promptRequired("Your guess (1-10)")
			case id == economy.GameCoinFlip:
				guess, err = promptChoice("Your call", []string{"heads", "tails"}, "heads")
			}
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				res, err := client.Play(ctx, int(id), guess)
				if err != nil {
					return err
				}
				renderGameResult(res)
				return nil
			})
		},
	})
	return games
}
