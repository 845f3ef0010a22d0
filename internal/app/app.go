// Package app skleja config, bazę, joby i API HTTP dla CLI i traya.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	conf "github.com/bartek5186/mosync/internal/config"
	"github.com/bartek5186/mosync/internal/db"
	"github.com/bartek5186/mosync/internal/events"
	"github.com/bartek5186/mosync/internal/httpapi"
	"github.com/bartek5186/mosync/internal/integrations"
	logs "github.com/bartek5186/mosync/internal/logs"
	"github.com/bartek5186/mosync/internal/production"
	"github.com/bartek5186/mosync/internal/store"
	syncer "github.com/bartek5186/mosync/internal/syncer"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	Log     zerolog.Logger
	Dir     string
	CfgPath string
	LogPath string
	Cfg     *conf.Config

	DB         *db.Handle
	Store      *store.Store
	Events     events.Publisher
	Production *production.Service
	Syncer     *syncer.Syncer
}

// DefaultDir: katalog danych użytkownika (logi, config, plik sqlite).
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "mosync")
}

// Open wczytuje config, otwiera i migruje bazę, buduje joby.
// ctx ogranicza każdy przebieg z harmonogramu.
func Open(ctx context.Context, dir string, withConsole bool) (*App, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	a := &App{
		Dir:     dir,
		CfgPath: filepath.Join(dir, "config.json"),
		LogPath: filepath.Join(dir, "app.log"),
	}
	a.Log = logs.New(a.LogPath, withConsole)

	cfg, firstRun, err := conf.LoadOrCreate(a.CfgPath)
	if err != nil {
		return nil, err
	}
	if firstRun {
		a.Log.Info().Str("path", a.CfgPath).Msg("Utworzono domyślną konfigurację")
	}
	a.Cfg = cfg

	if a.DB, err = openDB(cfg, dir); err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := a.DB.Migrate(); err != nil {
		_ = a.DB.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	a.Log.Info().Str("driver", a.DB.Driver).Msg("Baza gotowa")

	clock := cfg.Clock()
	a.Store = store.New(a.DB.DB, clock)
	a.Events = events.Nop{}
	if cfg.RabbitMQURL != "" {
		// broker obsługiwany w tle, przejścia produkcji na niego nie czekają
		a.Events = events.NewAsync(a.Log.With().Str("component", "events").Logger(),
			events.NewAMQP(cfg.RabbitMQURL, cfg.EventsQueue), events.DefaultBuffer)
	}
	a.Production = production.NewService(a.Log.With().Str("component", "production").Logger(), a.Store, a.Events)
	a.Syncer = syncer.New(ctx, a.Log, cfg, integrations.Deps{
		Log:   a.Log,
		Store: a.Store,
		Clock: clock,
	})
	return a, nil
}

func openDB(cfg *conf.Config, dir string) (*db.Handle, error) {
	switch cfg.DBDriver {
	case "", db.DriverSQLite, db.DriverSQLiteCgo:
		if cfg.DBDSN == "" {
			return db.Open(cfg.DBDriver, filepath.Join(dir, "mosync.db"))
		}
	default:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("db_dsn is required for driver %q", cfg.DBDriver)
		}
	}
	return db.Open(cfg.DBDriver, cfg.DBDSN)
}

// Reload wczytuje config ponownie: nowy zegar (strefa) trafia do store'a,
// a więc do produkcji i jobów; działające joby są restartowane.
// Baza, port i RabbitMQ zmieniają się dopiero po restarcie procesu.
func (a *App) Reload() error {
	cfg, _, err := conf.LoadOrCreate(a.CfgPath)
	if err != nil {
		return err
	}
	a.Cfg = cfg
	a.Store.SetClock(cfg.Clock())
	a.Syncer.UpdateConfig(cfg)
	a.Log.Info().Msg("Konfiguracja przeładowana")
	return nil
}

// Serve wystawia API do końca ctx, potem zatrzymuje harmonogramy i czeka
// na przebiegi w toku.
func (a *App) Serve(ctx context.Context, autoStart bool) error {
	srv := httpapi.New(httpapi.Deps{
		Log:        a.Log.With().Str("component", "http").Logger(),
		Store:      a.Store,
		Production: a.Production,
		Schedulers: a.Syncer,
	})

	if autoStart || a.Cfg.AutoStart {
		if err := a.Syncer.StartAll(); err != nil {
			a.Log.Warn().Err(err).Msg("AutoStart niepełny")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + strconv.Itoa(a.Cfg.Port))
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Log.Warn().Err(err).Msg("Zamykanie HTTP nieudane")
	}
	a.Syncer.StopAll()
	a.Syncer.Wait()
	return serveErr
}

func (a *App) Close() error {
	if as, ok := a.Events.(*events.Async); ok {
		as.Close()
	}
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
