package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/orderdesk/pkg/api"
	"github.com/uhyunpark/orderdesk/pkg/app/core"
	"github.com/uhyunpark/orderdesk/pkg/app/core/market"
	"github.com/uhyunpark/orderdesk/pkg/app/desk"
)

// global flags
var (
	addr    string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "deskctl",
	Short:        "Command line client for the order desk",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:8080", "Desk API address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		ordersCmd(),
		getCmd(),
		submitCmd(),
		idCmd("accept", "Mark an active order filled", (*api.RESTClient).Accept),
		idCmd("cancel", "Mark an active order cancelled", (*api.RESTClient).Cancel),
		idCmd("remove", "Delete an order", (*api.RESTClient).Remove),
		matchesCmd(),
		priceCmd(),
		quoteCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func client(cmd *cobra.Command) (*api.RESTClient, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return api.NewRESTClient(addr), ctx, cancel
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ordersCmd() *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := client(cmd)
			defer cancel()
			orders, err := c.Orders(ctx, desk.OrderList(view))
			if err != nil {
				return err
			}
			return printJSON(cmd, orders)
		},
	}
	cmd.Flags().StringVar(&view, "view", "all", "all, active or history")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := client(cmd)
			defer cancel()
			o, err := c.Order(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}

func submitCmd() *cobra.Command {
	var (
		req     desk.SubmitRequest
		expires time.Duration
		at      string
	)
	cmd := &cobra.Command{
		Use:   "submit <buy|sell> <quantity> [price]",
		Short: "Submit an order; without a price it is derived from the live price",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := core.ParseSide(args[0])
			if err != nil {
				return err
			}
			req.Type = side
			if req.Quantity, err = strconv.ParseFloat(args[1], 64); err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			if len(args) == 3 {
				if req.Price, err = strconv.ParseFloat(args[2], 64); err != nil {
					return fmt.Errorf("price: %w", err)
				}
			} else {
				req.AutoPrice = true
			}

			if at != "" {
				req.ExpirationType = core.ExpireAtDateTime
				req.ExpirationValue = at
			} else {
				req.ExpirationType = core.ExpireAfterDuration
				req.ExpirationValue = strconv.FormatInt(int64(expires/time.Second), 10)
			}

			c, ctx, cancel := client(cmd)
			defer cancel()
			o, err := c.Submit(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
	cmd.Flags().StringVar(&req.Asset, "asset", market.DefaultSymbol, "Asset symbol")
	cmd.Flags().DurationVar(&expires, "expires", time.Hour, "Lifetime, whole seconds")
	cmd.Flags().StringVar(&at, "expires-at", "", "Absolute expiration date-time, overrides --expires")
	return cmd
}

func idCmd(use, short string, call func(*api.RESTClient, context.Context, string) (core.Order, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := client(cmd)
			defer cancel()
			o, err := call(c, ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}

func matchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List potential matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := client(cmd)
			defer cancel()
			m, err := c.Matches(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
}

func priceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Show the reference price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := client(cmd)
			defer cancel()
			p, err := c.Price(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}
}

func quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <quantity>",
		Short: "Price a quantity at the reference price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			c, ctx, cancel := client(cmd)
			defer cancel()
			q, err := c.Quote(ctx, qty)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}
}
