package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "microbank/internal/cli"
)

func newAdminCmd(apiBase *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrator commands",
	}
	admin.AddCommand(
		newAdminUsersCmd(apiBase),
		newAdminAdjustCmd(apiBase),
		newAdminSetCodeCmd(apiBase),
		newAdminPriceCmd(apiBase),
		newAdminDriftCmd(apiBase),
		newAdminOrdersCmd(apiBase),
		newAdminItemsCmd(apiBase),
		newAdminSeasonsCmd(apiBase),
	)
	return admin
}

func newAdminUsersCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Users(ctx)
				if err != nil {
					return err
				}
				renderUsers(out)
				return nil
			})
		},
	}
}

func newAdminAdjustCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust [principal] [amount]",
		Short: "Credit (positive) or debit (negative) a balance; debits stop at zero",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var principal string
			if len(args) > 0 {
				principal = strings.TrimSpace(args[0])
			} else {
				var err error
				if principal, err = promptRequired("Principal"); err != nil {
					return err
				}
			}
			amount, err := amountFromArgOrPrompt(args, 1, "Amount")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				tx, err := client.Adjust(ctx, principal, amount)
				if err != nil {
					return err
				}
				if !tx.Amount.Equal(amount) {
					printWarn(fmt.Sprintf("Balance only covered %s.", formatAmount(tx.Amount.Abs())))
				}
				printSuccess(fmt.Sprintf("Adjusted %s by %s.", tx.User, colorizeAmount(tx.Amount)))
				return nil
			})
		},
	}
}

func newAdminSetCodeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-code [username]",
		Short: "Reset a user's 4-digit code",
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
			code, err := promptCode("New code")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				if err := client.SetCode(ctx, username, code); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Code for %s updated.", username))
				return nil
			})
		},
	}
}

func newAdminPriceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "price [symbol] [price]",
		Short: "Set a stock price",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := symbolFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			price, err := amountFromArgOrPrompt(args, 1, "Price")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				st, err := client.SetPrice(ctx, symbol, price)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("%s now trades at %s.", st.Symbol, formatAmount(st.Price)))
				return nil
			})
		},
	}
}

func newAdminDriftCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Reprice every stock now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Drift(ctx)
				if err != nil {
					return err
				}
				renderStocks(out)
				return nil
			})
		},
	}
}

func newAdminOrdersCmd(apiBase *string) *cobra.Command {
	orders := &cobra.Command{
		Use:   "orders",
		Short: "List every shop order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				out, err := client.Orders(ctx, true)
				if err != nil {
					return err
				}
				renderOrders(out)
				return nil
			})
		},
	}
	orders.AddCommand(&cobra.Command{
		Use:   "decide [orderID] [approved|declined]",
		Short: "Approve or decline a pending order",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Order ID")
			if err != nil {
				return err
			}
			var decision string
			if len(args) > 1 {
				decision = strings.ToLower(strings.TrimSpace(args[1]))
			} else if decision, err = promptChoice("Decision", []string{"approved", "declined"}, "approved"); err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				order, err := client.Decide(ctx, id, decision)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Order #%d %s.", order.ID, order.Status))
				return nil
			})
		},
	})
	return orders
}

func newAdminItemsCmd(apiBase *string) *cobra.Command {
	items := &cobra.Command{
		Use:   "items",
		Short: "Manage shop items",
	}
	items.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add a shop item",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			price, err := promptAmount("Price")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				it, err := client.AddItem(ctx, name, price)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Item #%d %s added at %s.", it.ID, it.Name, formatAmount(it.Price)))
				return nil
			})
		},
	})
	items.AddCommand(&cobra.Command{
		Use:   "edit [itemID]",
		Short: "Rename or reprice a shop item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			price, err := promptAmount("Price")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				it, err := client.EditItem(ctx, id, name, price)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Item #%d is now %s at %s.", it.ID, it.Name, formatAmount(it.Price)))
				return nil
			})
		},
	})
	items.AddCommand(&cobra.Command{
		Use:   "delete [itemID]",
		Short: "Remove a shop item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Item ID")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				if err := client.DeleteItem(ctx, id); err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Item #%d removed.", id))
				return nil
			})
		},
	})
	return items
}

func newAdminSeasonsCmd(apiBase *string) *cobra.Command {
	seasons := &cobra.Command{
		Use:   "tax",
		Short: "Manage tax seasons and run periodic tax",
	}
	seasons.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add a tax season with a date window or a frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			rate, err := promptAmount("Rate percent")
			if err != nil {
				return err
			}
			in := map[string]any{"name": name, "rate": rate}
			kind, err := promptChoice("Applies", []string{"window", "periodic"}, "window")
			if err != nil {
				return err
			}
			if kind == "window" {
				start, err := promptDate("Start date")
				if err != nil {
					return err
				}
				end, err := promptDate("End date")
				if err != nil {
					return err
				}
				if start == nil || end == nil {
					return fmt.Errorf("a windowed season needs both dates")
				}
				in["startDate"] = start
				in["endDate"] = end.Add(24*time.Hour - time.Nanosecond)
			} else {
				freq, err := promptChoice("Frequency", []string{"weekly", "monthly", "yearly"}, "monthly")
				if err != nil {
					return err
				}
				in["frequency"] = freq
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				s, err := client.AddSeason(ctx, in)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Tax season #%d %s at %s%% added.", s.ID, s.Name, s.Rate.StringFixed(2)))
				return nil
			})
		},
	})
	seasons.AddCommand(&cobra.Command{
		Use:   "end [seasonID]",
		Short: "End a tax season",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Season ID")
			if err != nil {
				return err
			}
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				s, err := client.EndSeason(ctx, id)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Tax season #%d %s ended.", s.ID, s.Name))
				return nil
			})
		},
	})
	seasons.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Collect periodic tax from every balance now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, apiBase, func(ctx context.Context, client *cl.Client) error {
				run, err := client.ApplyTax(ctx)
				if err != nil {
					return err
				}
				if run.Total.IsZero() {
					printInfo("Nothing to collect.")
					return nil
				}
				printSuccess(fmt.Sprintf("Collected %s from %d principals across %d seasons.", formatAmount(run.Total), run.Principals, run.Seasons))
				return nil
			})
		},
	})
	return seasons
}
