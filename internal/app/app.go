package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"palmbudget/internal/alerting"
	"palmbudget/internal/config"
	"palmbudget/internal/keeper"
	"palmbudget/internal/ledger"
	"palmbudget/internal/policy"
	"palmbudget/internal/server"
	"palmbudget/internal/storage"
	"palmbudget/internal/sweep"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) defaultRatio() policy.SplitRatio {
	r := a.Config.Policy.DefaultRatio
	return policy.SplitRatio{Bills: r.Bills, Savings: r.Savings, Growth: r.Growth, Spendable: r.Spendable}
}

func (a *App) storeDefaults() storage.Defaults {
	return storage.Defaults{
		MinimumBalance: decimal.NewFromFloat(a.Config.Policy.DefaultMinimumBalance),
		Ratio:          a.defaultRatio(),
	}
}

func (a *App) newLedger() ledger.Ledger {
	return ledger.NewChain(ledger.ChainOptions{
		RPCURL:        a.Config.Ethereum.RPCURL,
		RouterAddress: a.Config.Ethereum.RouterAddress,
		PrivateKey:    a.Config.Ethereum.PrivateKey,
		ChainID:       a.Config.Ethereum.ChainID,
		TokenDecimals: a.Config.Ethereum.TokenDecimals,
		Timeout:       a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewStore(ctx, pool, a.storeDefaults())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

// Run executes the long-running keeper, with the optional HTTP trigger
// surface alongside.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pause := sweep.NewPauseState(a.Config.Admin.Identity, a.Logger)
	scheduler := sweep.New(store, a.newLedger(), pause, a.Logger)

	k := keeper.New(keeper.Options{
		Cron:            a.Config.Keeper.Cron,
		AdvisoryLockKey: a.Config.Keeper.AdvisoryLockKey,
		RunOnStart:      a.Config.Keeper.RunOnStart,
	}, scheduler, store, a.Logger)
	k.SetRecorder(store)
	k.SetLocker(store)
	k.SetPauseSource(store)
	if notifier := a.newNotifier(); notifier != nil {
		k.SetNotifier(notifier)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return k.Run(ctx)
	})

	if a.Config.Server.Enabled {
		srv := server.New(scheduler, a.Logger)
		srv.SetPauseStore(store)
		httpServer := &http.Server{
			Addr:         a.Config.Server.ListenAddress,
			Handler:      srv.Router(),
			ReadTimeout:  a.Config.Server.ReadTimeout,
			WriteTimeout: a.Config.Server.WriteTimeout,
		}

		group.Go(func() error {
			a.Logger.Info().Str("addr", httpServer.Addr).Msg("http trigger surface listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	a.Logger.Info().Msg("starting sweep keeper")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("keeper terminated with error")
		return err
	}

	a.Logger.Info().Msg("sweep keeper stopped")
	return nil
}

// ExportOptions hold parameters for exporting the sweep audit history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure a dry-run sweep evaluation on the memory ledger.
type SimulateOptions struct {
	User      string
	Spendable decimal.Decimal
	Minimum   decimal.Decimal
	At        time.Time
	YieldBps  map[string]int64
}
