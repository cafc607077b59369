package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/saveme/internal/client/client"
	"github.com/dmitrijs2005/saveme/internal/client/config"
	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/notify"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/store"
)

type Mode string

const (
	ModeLocal   Mode = "local"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// pinger is implemented by vaults that sit behind a network.
type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config   *config.Config
	vault    services.Vault
	logger   logging.Logger
	userID   string
	unlocked bool

	mu   sync.Mutex
	Mode Mode

	reader  *bufio.Reader
	out     io.Writer
	closers []io.Closer
}

// NewApp opens the vault the configuration asks for: a daemon when an
// endpoint is set, otherwise an in-process vault over the local store.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, logging.ParseLevel(c.LogLevel))

	a := &App{
		config: c,
		logger: logger,
		userID: c.UserID,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	if c.Remote() {
		gc, err := client.NewGRPCClient(c.ServerEndpointAddr)
		if err != nil {
			return nil, err
		}
		a.vault = gc
		a.Mode = ModeOffline
		return a, nil
	}

	st, err := store.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing store: %w", err)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	opts := []services.Option{}
	if c.NATSURL != "" {
		nn, err := notify.DialNATS(c.NATSURL)
		if err != nil {
			logger.Warn(ctx, "nats unavailable, view notifications stay local", "error", err)
		} else {
			a.closers = append(a.closers, nn)
			notifier = notify.Multi{notifier, nn}
		}
	}
	opts = append(opts, services.WithNotifier(notifier))

	if c.S3.Enabled() {
		up, err := export.NewUploader(ctx, c.S3)
		if err != nil {
			logger.Warn(ctx, "export upload disabled", "error", err)
		} else {
			opts = append(opts, services.WithUploader(up))
		}
	}

	v, err := services.NewLocalVault(st, c.BlobDir, c.Policy, logger, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.vault = v
	a.Mode = ModeLocal
	return a, nil
}

func (app *App) setMode(mode Mode) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.Mode != mode {
		app.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (app *App) mode() Mode {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.Mode
}

func (a *App) Run(ctx context.Context) {
	defer a.close()
	a.Root(ctx)
}

func (a *App) close() {
	if err := a.vault.Close(); err != nil {
		a.logger.Warn(context.Background(), "close vault", "error", err)
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.unlocked
}

// StartOnlineStatusWatcher pings the daemon every interval and flips between
// online and offline mode. It does nothing for a local vault.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	p, ok := a.vault.(pinger)
	if !ok || interval <= 0 {
		return
	}

	check := func() {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			a.setMode(ModeOffline)
		} else {
			a.setMode(ModeOnline)
		}
	}
	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}
