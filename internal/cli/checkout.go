package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shrimpzone/internal/checkout"
)

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	FormPath string
	Quote    bool

	// fields holds the per-field flags; only flags that were set override
	// the form file.
	fields checkout.Form
}

// QuoteView is the JSON shape of checkout --quote.
type QuoteView struct {
	Summary checkout.Summary `json:"summary"`
	Cart    CartView         `json:"cart"`
}

// fieldFlag turns a field label into its flag name.
func fieldFlag(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "-")
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		Long: `Place an order for everything in the cart.

Form fields come from a YAML file (--form), from flags, or both; flags win.
Every field except delivery instructions is required. Payment is simulated:
the order is confirmed after a short delay and the cart is emptied.

Examples:
  shrimpzone checkout --quote
  shrimpzone checkout --form order.yaml
  shrimpzone checkout --form order.yaml --card-number "4111 1111 1111 1111"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				if opts.Quote {
					return runQuote(cmd, app, out)
				}
				form, err := opts.form(cmd)
				if err != nil {
					return err
				}
				return runCheckout(cmd, app, out, form)
			})
		},
	}

	cmd.Flags().StringVar(&opts.FormPath, "form", "", "YAML file with the checkout form")
	cmd.Flags().BoolVar(&opts.Quote, "quote", false, "show the order summary without placing the order")
	for _, fd := range checkout.Fields {
		cmd.Flags().StringVar(fd.Value(&opts.fields), fieldFlag(fd.Name), "", fd.Name)
	}
	cmd.Flags().StringVar(&opts.fields.DeliveryInstructions, "instructions", "", "delivery instructions (optional)")

	return cmd
}

// form merges the form file with the flags that were set.
func (o *CheckoutOptions) form(cmd *cobra.Command) (checkout.Form, error) {
	var form checkout.Form
	if o.FormPath != "" {
		data, err := os.ReadFile(o.FormPath)
		if err != nil {
			return form, WrapExitError(ExitCommandError, "failed to read form", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&form); err != nil && !errors.Is(err, io.EOF) {
			return form, WrapExitError(ExitCommandError, "failed to parse form", err)
		}
	}

	for _, fd := range checkout.Fields {
		if cmd.Flags().Changed(fieldFlag(fd.Name)) {
			*fd.Value(&form) = *fd.Value(&o.fields)
		}
	}
	if cmd.Flags().Changed("instructions") {
		form.DeliveryInstructions = o.fields.DeliveryInstructions
	}
	return form, nil
}

func runQuote(cmd *cobra.Command, app *App, out *OutputFormatter) error {
	summary, _, err := app.Checkout.Quote(cmd.Context())
	if err != nil {
		return failed("failed to load cart", err)
	}
	view := QuoteView{Summary: summary, Cart: cartView(app)}
	return out.Render(view, func(w io.Writer) error {
		if err := writeCart(w, app, view.Cart); err != nil {
			return err
		}
		if len(view.Cart.Lines) == 0 {
			return nil
		}
		fmt.Fprintln(w)
		return writeSummary(w, summary)
	})
}

func runCheckout(cmd *cobra.Command, app *App, out *OutputFormatter, form checkout.Form) error {
	if out.Format != "json" && form.Validate() == nil {
		fmt.Fprintln(out.GetErrWriter(), "Processing payment...")
	}
	receipt, err := app.Checkout.PlaceOrder(cmd.Context(), form)
	if err != nil {
		return failed("checkout failed", err)
	}
	return out.Render(receipt, func(w io.Writer) error {
		fmt.Fprintf(w, "Order %s placed at %s\n\n", receipt.OrderID, receipt.PlacedAt.UTC().Format(time.RFC3339))
		if err := writeSummary(w, receipt.Summary); err != nil {
			return err
		}
		fmt.Fprintf(w, "Card:      %s\n", receipt.Card)
		return nil
	})
}

func writeSummary(w io.Writer, s checkout.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Items:\t%d\n", s.Items)
	fmt.Fprintf(tw, "Subtotal:\t%s\n", s.Subtotal)
	fmt.Fprintf(tw, "Delivery:\t%s\n", s.DeliveryFee)
	fmt.Fprintf(tw, "Tax:\t%s\n", s.Tax)
	fmt.Fprintf(tw, "Total:\t%s\n", s.Total)
	return tw.Flush()
}
