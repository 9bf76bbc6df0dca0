package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shrimpzone/internal/api"
)

// NewWishlistCommand creates the wishlist command and its subcommands.
func NewWishlistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show and change saved meals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show saved meals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				meals, err := app.Wishlist.List(cmd.Context())
				if err != nil {
					return failed("failed to load wishlist", err)
				}
				return out.Render(meals, func(w io.Writer) error {
					return writeWishlist(w, meals)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "add <product-id>",
		Short:         "Save a meal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Wishlist.Add(cmd.Context(), args[0]); err != nil {
					return failed("failed to save meal", err)
				}
				return renderSaved(out, args[0], true)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "remove <product-id>",
		Short:         "Drop a saved meal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Wishlist.Remove(cmd.Context(), args[0]); err != nil {
					return failed("failed to drop meal", err)
				}
				return renderSaved(out, args[0], false)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "toggle <product-id>",
		Short:         "Save a meal, or drop it if already saved",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				saved, err := app.Wishlist.Toggle(cmd.Context(), args[0])
				if err != nil {
					return failed("failed to toggle meal", err)
				}
				return renderSaved(out, args[0], saved)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Drop every saved meal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(app *App, out *OutputFormatter) error {
				if err := app.Wishlist.Clear(cmd.Context()); err != nil {
					return failed("failed to clear wishlist", err)
				}
				return out.Render(map[string]bool{"cleared": true}, func(w io.Writer) error {
					fmt.Fprintln(w, "Wishlist cleared")
					return nil
				})
			})
		},
	})

	return cmd
}

func renderSaved(out *OutputFormatter, productID string, saved bool) error {
	data := struct {
		ProductID string `json:"productId"`
		Saved     bool   `json:"saved"`
	}{productID, saved}
	return out.Render(data, func(w io.Writer) error {
		if saved {
			fmt.Fprintf(w, "Saved %s\n", productID)
		} else {
			fmt.Fprintf(w, "Removed %s\n", productID)
		}
		return nil
	})
}

func writeWishlist(w io.Writer, meals []api.Meal) error {
	if len(meals) == 0 {
		fmt.Fprintln(w, "Your wishlist is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, m := range meals {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, m.Price)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nSaved items: %d\n", len(meals))
	return nil
}
