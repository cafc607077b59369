// Package server runs the saveme daemon: it opens the record store, wires
// the vault, serves it over gRPC and runs the periodic auto-delete sweep
// until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/notify"
	"github.com/dmitrijs2005/saveme/internal/server/config"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/store"

	gs "github.com/dmitrijs2005/saveme/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	vault  *services.LocalVault
	nats   *notify.NATSNotifier
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(c.LogLevel))

	st, err := store.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if c.NATSURL != "" {
		nn, err := notify.DialNATS(c.NATSURL)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("nats init error: %w", err)
		}
		app.nats = nn
		notifier = notify.Multi{notifier, nn}
	}

	opts := []services.Option{services.WithNotifier(notifier), services.WithUserScope(true)}
	if c.S3.Enabled() {
		up, err := export.NewUploader(ctx, c.S3)
		if err != nil {
			app.closeNATS()
			_ = st.Close()
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		opts = append(opts, services.WithUploader(up))
	}

	v, err := services.NewLocalVault(st, c.BlobDir, c.Policy, logger, opts...)
	if err != nil {
		app.closeNATS()
		_ = st.Close()
		return nil, fmt.Errorf("vault init error: %w", err)
	}
	app.vault = v

	return app, nil
}

func (app *App) closeNATS() {
	if app.nats != nil {
		_ = app.nats.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewServer(app.config.EndpointAddrGRPC, app.logger, app.vault, app.config.SecretKey,
		gs.WithTokenTTL(app.config.AccessTokenValidityDuration),
		gs.WithLoginRate(app.config.LoginRatePerMinute, app.config.LoginBurst),
		gs.WithRemoteWipe(app.config.AllowRemoteWipe),
	)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if res, err := app.vault.Sweep(ctx); err != nil {
		app.logger.Warn(ctx, "startup sweep failed", "error", err)
	} else if !res.Empty() {
		app.logger.Info(ctx, "startup sweep", "deleted_files", len(res.DeletedFiles), "reaped_shares", res.ReapedShares)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.vault.RunSweeper(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	app.closeNATS()
	if err := app.vault.Close(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
