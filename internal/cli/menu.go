package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shrimpzone/internal/catalog"
)

// MenuOptions holds flags for the menu command.
type MenuOptions struct {
	*RootOptions
	Category string
	Search   string
	Page     int
	Limit    int
}

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MenuOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Browse meals",
		Long: `List menu categories and one page of meals.

Meals are remembered locally so cart totals can be priced offline.

Examples:
  shrimpzone menu
  shrimpzone menu --category cat-shrimp --search garlic
  shrimpzone menu --page 2 --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(app *App, out *OutputFormatter) error {
				menu, err := app.Catalog.Browse(cmd.Context(), catalog.Filter{
					Category:   opts.Category,
					SearchTerm: opts.Search,
					Page:       opts.Page,
					Limit:      opts.Limit,
				})
				if err != nil {
					return failed("failed to load menu", err)
				}
				return out.Render(menu, func(w io.Writer) error {
					return writeMenu(w, menu)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", catalog.AllCategories, "category id, or \"all\"")
	cmd.Flags().StringVar(&opts.Search, "search", "", "search meal names")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number (server default when 0)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "meals per page (server default when 0)")

	return cmd
}

func writeMenu(w io.Writer, menu *catalog.Menu) error {
	names := make([]string, len(menu.Categories))
	for i, c := range menu.Categories {
		names[i] = fmt.Sprintf("%s (%s)", c.Name, c.ID)
	}
	if len(names) > 0 {
		fmt.Fprintf(w, "Categories: %s\n\n", strings.Join(names, ", "))
	}

	if len(menu.Meals) == 0 {
		fmt.Fprintln(w, "No meals found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCATEGORY")
	for _, m := range menu.Meals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Price, menu.CategoryName(m.Category))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPage %d of %d, %d meal(s)\n", menu.Page, menu.Pages, menu.Total)
	return nil
}
