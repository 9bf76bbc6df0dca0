package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/auth"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/catalog"
	"github.com/roach88/shrimpzone/internal/checkout"
	"github.com/roach88/shrimpzone/internal/config"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/notify"
	"github.com/roach88/shrimpzone/internal/session"
	"github.com/roach88/shrimpzone/internal/store"
	"github.com/roach88/shrimpzone/internal/wishlist"
)

// App is one command's view of the storefront: configuration, local state
// and every service, wired together.
type App struct {
	Config   config.Config
	Store    *store.Store
	Sessions *session.Manager
	Client   *api.Client
	Catalog  *catalog.Service
	Cart     *cart.Controller
	Wishlist *wishlist.Service
	Checkout *checkout.Service
	Auth     *auth.Flow
	Tray     *notify.Tray
}

// loadConfig resolves configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: o.ConfigPath, Environ: o.Environ})
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.APIURL != "" {
		cfg.BaseURL = o.APIURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openApp loads configuration, opens the database, restores the session
// and builds the services. Callers must Close the app.
func openApp(cmd *cobra.Command, opts *RootOptions) (*App, error) {
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if !opts.Verbose {
		setupLogging(cmd.ErrOrStderr(), cfg.Level())
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	gen := opts.IDs
	if gen == nil {
		gen = ids.UUIDv7Generator{}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
	}
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	app, err := buildApp(ctx, cfg, st, now, gen)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
		return nil, err
	}
	return app, nil
}

func buildApp(ctx context.Context, cfg config.Config, st *store.Store, now func() time.Time, gen ids.Generator) (*App, error) {
	sessions := session.NewManager(
		session.WithStore(st),
		session.WithClock(now),
		session.WithTTL(cfg.SessionTTL),
	)
	if err := sessions.Restore(ctx); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to restore session", err)
	}

	client, err := api.NewClient(cfg.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithTokenSource(sessions),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid API URL", err)
	}

	fee, rate, err := cfg.Fees()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid fees", err)
	}

	menu := catalog.NewService(client, catalog.WithCache(st), catalog.WithClock(now))
	if err := menu.Warm(ctx); err != nil {
		slog.Warn("price cache unavailable", "error", err)
	}

	tray := notify.NewTray(notify.WithClock(now))
	ctl := cart.NewController(client,
		cart.WithNotifier(notify.Multi(tray, notify.LogSink{})),
		cart.WithPriceBook(menu),
		cart.WithJournal(st),
		cart.WithPolicy(cfg.Policy()),
		cart.WithClock(now),
		cart.WithIDGenerator(gen),
	)

	return &App{
		Config:   cfg,
		Store:    st,
		Sessions: sessions,
		Client:   client,
		Catalog:  menu,
		Cart:     ctl,
		Wishlist: wishlist.NewService(client),
		Checkout: checkout.NewService(ctl,
			checkout.WithFees(fee, rate),
			checkout.WithDelay(cfg.CheckoutDelay),
			checkout.WithClock(now),
			checkout.WithIDGenerator(gen),
		),
		Auth: auth.NewFlow(client, sessions),
		Tray: tray,
	}, nil
}

// Close releases the cart controller and the database.
func (a *App) Close() error {
	a.Cart.Close()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(app *App, out *OutputFormatter) error) error {
	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("error closing app", "error", closeErr)
		}
	}()
	return fn(app, opts.formatter(cmd))
}

// failed wraps an operation failure unless it already carries an exit code.
func failed(message string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, message, err)
}
