package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/store"
)

// maxConcurrentProducts bounds how many products are changed at once.
const maxConcurrentProducts = 4

// CartView is the JSON shape of the cart.
type CartView struct {
	Lines  []cart.Line `json:"lines"`
	Totals cart.Totals `json:"totals"`
}

// MutationResult is the JSON shape of a cart change.
type MutationResult struct {
	Mutations []cart.Mutation `json:"mutations"`
	Cart      CartView        `json:"cart"`
	Notices   []string        `json:"notices,omitempty"`
}

func cartView(app *App) CartView {
	lines := app.Cart.Local()
	for i := range lines {
		if lines[i].Name == "" {
			lines[i].Name, _ = app.Catalog.Name(lines[i].ProductID)
		}
	}
	if lines == nil {
		lines = []cart.Line{}
	}
	return CartView{Lines: lines, Totals: app.Cart.TotalsOf(lines)}
}

func writeCart(w io.Writer, app *App, v CartView) error {
	if len(v.Lines) == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tUNIT\tTOTAL")
	for _, l := range v.Lines {
		lineTotal := app.Cart.TotalsOf([]cart.Line{l}).Price
		unit := l.UnitPrice
		if !l.Priced {
			unit, _ = app.Catalog.UnitPrice(l.ProductID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ProductID, l.Name, l.Quantity, unit, lineTotal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nItems: %d\nTotal: %s\n", v.Totals.Items, v.Totals.Price)
	return nil
}

// NewCartCommand creates the cart command and its subcommands.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change your cart",
		Long: `Show and change your cart. Every change is journaled locally;
see "shrimpzone cart history".`,
	}

	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartChangeCommand(rootOpts, cart.KindAdd))
	cmd.AddCommand(newCartChangeCommand(rootOpts, cart.KindRemove))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	cmd.AddCommand(newCartHistoryCommand(rootOpts))

	return cmd
}

func newCartShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Cart.Refresh(cmd.Context()); err != nil {
					return failed("failed to load cart", err)
				}
				v := cartView(app)
				return out.Render(v, func(w io.Writer) error {
					return writeCart(w, app, v)
				})
			})
		},
	}
}

// CartChangeOptions holds flags for cart add and cart remove.
type CartChangeOptions struct {
	*RootOptions
	Times int
}

func newCartChangeCommand(rootOpts *RootOptions, kind cart.Kind) *cobra.Command {
	opts := &CartChangeOptions{RootOptions: rootOpts}

	verb, short := "add", "Add one unit of each product"
	if kind == cart.KindRemove {
		verb, short = "remove", "Remove one unit of each product"
	}

	cmd := &cobra.Command{
		Use:   verb + " <product-id>...",
		Short: short,
		Long: short + `.

Products are changed concurrently; repeated units of the same product are
sent one after another.

Example:
  shrimpzone cart ` + verb + ` m-1 m-2
  shrimpzone cart ` + verb + ` m-1 --times 3`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Times < 1 {
				return NewExitError(ExitCommandError, "--times must be at least 1")
			}
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				return runCartChange(cmd.Context(), app, out, kind, args, opts.Times)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Times, "times", "n", 1, "units to "+verb+" per product")

	return cmd
}

func runCartChange(ctx context.Context, app *App, out *OutputFormatter, kind cart.Kind, productIDs []string, times int) error {
	if err := app.Cart.Refresh(ctx); err != nil {
		if api.IsNotAuthenticated(err) {
			return failed(signInMessage(kind), err)
		}
		return failed("failed to load cart", err)
	}

	change := app.Cart.AddItem
	if kind == cart.KindRemove {
		change = app.Cart.RemoveItem
	}

	// results[i] holds the mutations of productIDs[i] in click order.
	results := make([][]cart.Mutation, len(productIDs))
	var g errgroup.Group
	g.SetLimit(maxConcurrentProducts)
	for i, id := range productIDs {
		g.Go(func() error {
			for range times {
				m, err := change(ctx, id)
				if m.ID != "" {
					results[i] = append(results[i], m)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	firstErr := g.Wait()

	res := MutationResult{Mutations: []cart.Mutation{}, Cart: cartView(app)}
	for _, ms := range results {
		res.Mutations = append(res.Mutations, ms...)
	}
	for _, n := range app.Tray.Active() {
		res.Notices = append(res.Notices, n.Message)
	}

	if firstErr == nil {
		return out.Render(res, func(w io.Writer) error {
			return writeMutationResult(w, app, res)
		})
	}

	// The result goes out as the error's details so that JSON output stays a
	// single document.
	message := fmt.Sprintf("%s failed: %v", kind, firstErr)
	if out.Format == "json" {
		if err := out.Error(ErrorCode(firstErr), message, res); err != nil {
			return err
		}
		return reportedExitError(message)
	}
	if err := writeMutationResult(out.Writer, app, res); err != nil {
		return err
	}
	fmt.Fprintln(out.Writer)
	if err := out.Error(ErrorCode(firstErr), message, nil); err != nil {
		return err
	}
	return reportedExitError(message)
}

// signInMessage matches the notice a rolled back mutation gets when the
// session is missing.
func signInMessage(kind cart.Kind) string {
	if kind == cart.KindAdd {
		return "Sign in to add items to your cart"
	}
	return "Sign in to update your cart"
}

func writeMutationResult(w io.Writer, app *App, res MutationResult) error {
	for _, m := range res.Mutations {
		fmt.Fprintf(w, "%s %s: %s", m.Kind, m.ProductID, m.State)
		if m.Failure != "" {
			fmt.Fprintf(w, " (%s)", m.Failure)
		}
		fmt.Fprintln(w)
	}
	if len(res.Mutations) > 0 {
		fmt.Fprintln(w)
	}
	return writeCart(w, app, res.Cart)
}

func newCartClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Empty the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Cart.Clear(cmd.Context()); err != nil {
					return failed("failed to clear cart", err)
				}
				v := cartView(app)
				return out.Render(v, func(w io.Writer) error {
					fmt.Fprintln(w, "Cart cleared")
					return nil
				})
			})
		},
	}
}

// CartHistoryOptions holds flags for cart history.
type CartHistoryOptions struct {
	*RootOptions
	ProductID string
	Limit     int
}

func newCartHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CartHistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled cart changes",
		Long: `Show settled cart changes recorded on this machine, oldest first.

Example:
  shrimpzone cart history --product m-1 --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				ms, err := app.Store.ReadMutations(cmd.Context(), store.HistoryFilter{
					ProductID: opts.ProductID,
					Limit:     opts.Limit,
				})
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read history", err)
				}
				return out.Render(ms, func(w io.Writer) error {
					return writeHistory(w, ms)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.ProductID, "product", "", "only show changes to this product")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N changes")

	return cmd
}

func writeHistory(w io.Writer, ms []cart.Mutation) error {
	if len(ms) == 0 {
		fmt.Fprintln(w, "No cart changes recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTLED\tKIND\tPRODUCT\tQTY\tSTATE\tFAILURE")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			m.SettledAt.UTC().Format(time.RFC3339), m.Kind, m.ProductID, m.Quantity, m.State, m.Failure)
	}
	return tw.Flush()
}
