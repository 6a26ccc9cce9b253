package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/neilberkman/ccdash/internal/core/auth"
	"github.com/neilberkman/ccdash/internal/core/catalog"
	"github.com/neilberkman/ccdash/internal/core/claudejson"
	"github.com/neilberkman/ccdash/internal/core/config"
	"github.com/neilberkman/ccdash/internal/core/connection"
	"github.com/neilberkman/ccdash/internal/core/credentials"
	"github.com/neilberkman/ccdash/internal/core/db"
	"github.com/neilberkman/ccdash/internal/core/importer"
	"github.com/neilberkman/ccdash/internal/core/kv"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/internal/core/notify"
	"github.com/neilberkman/ccdash/internal/core/session"
	"github.com/neilberkman/ccdash/internal/core/settings"
	"github.com/neilberkman/ccdash/internal/core/usage"
	"github.com/neilberkman/ccdash/internal/core/usageapi"
	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// App holds every long-lived collaborator a command needs. Commands build it
// once with newApp and Close it when done.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Backend    *kv.Lazy
	KV         *kv.Store
	Connection *connection.Store
	Settings   *settings.Store
	Detector   *credentials.Detector
	Client     *usageapi.Client
	Notifier   *notify.Notifier
	Recovery   *auth.Recovery
	Usage      *usage.Aggregator
	Catalog    *catalog.Catalog
}

// sessionLister lists sessions through whatever transport the current
// connection asks for
type sessionLister struct {
	conn   *connection.Store
	logger *slog.Logger
}

func (l sessionLister) store() *ccsessions.Store {
	s := ccsessions.NewStore(l.conn.Current().Transport())
	s.Logger = l.logger
	return s
}

func (l sessionLister) ListSessions(ctx context.Context, claudeDir string) ([]models.SessionMeta, error) {
	return l.store().ListSessions(ctx, claudeDir)
}

func (l sessionLister) ReadSession(ctx context.Context, path string) ([]models.SessionEntry, error) {
	return l.store().ReadSession(ctx, path)
}

func newApp(ctx context.Context) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	a.Backend = kv.NewLazy(cfg.DBPath)
	a.KV = kv.New(a.Backend)

	a.Detector = credentials.NewDetector()
	a.Detector.Logger = logger
	a.Client = usageapi.New()

	a.Connection = connection.NewStore(a.KV, a.Client, a.Detector)
	if err := a.Connection.Load(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Settings = settings.NewStore(a.KV, settings.Settings{
		RefreshInterval:      cfg.RefreshInterval,
		NotificationsEnabled: cfg.Notifications,
	})
	if _, err := a.Settings.Load(ctx); err != nil {
		logger.Warn("failed to load settings, using defaults", "error", err)
	}
	current := a.Settings.Current()

	a.Notifier = notify.New(notify.NewCommandDispatcher()).WithLogger(logger)
	a.Notifier.SetEnabled(current.NotificationsEnabled)

	a.Recovery = auth.NewRecovery(a.Connection, a.Client, a.Detector,
		credentials.NewOAuthRefresher(a.Detector, a.Client),
		credentials.NewCLIRefresher(cfg.RefreshCommand, a.Detector),
	).WithLogger(logger)
	a.Usage = usage.NewAggregator(a.Connection, a.Client, a.Recovery, a.Notifier, a.KV).WithLogger(logger)

	a.Catalog = catalog.New(a.lister(), a.ClaudeDir).WithLogger(logger)

	return a, nil
}

// ClaudeDir is the directory sessions are read from. A directory stored with
// the connection wins over config.
func (a *App) ClaudeDir() string {
	if dir := a.Connection.Current().ClaudeDir; dir != "" {
		return dir
	}
	return a.Config.ClaudeDir
}

// ProjectsDir is the host path of <claude dir>/projects
func (a *App) ProjectsDir() string {
	t := a.Connection.Current().Transport()
	return filepath.Join(t.Resolve(a.ClaudeDir()), "projects")
}

// ClaudeJSON reads ~/.claude.json and the stats cache over the current
// transport
func (a *App) ClaudeJSON() *claudejson.Reader {
	t := a.Connection.Current().Transport()
	return claudejson.New(t.Resolve(a.ClaudeDir())).WithResolver(t.Resolve).WithLogger(a.Logger)
}

// lister reads session files over the current transport
func (a *App) lister() sessionLister {
	return sessionLister{conn: a.Connection, logger: a.Logger}
}

// DB opens the search index
func (a *App) DB() (*db.DB, error) {
	return a.Backend.DB()
}

// Importer returns an importer over the index
func (a *App) Importer() (*importer.Importer, error) {
	database, err := a.DB()
	if err != nil {
		return nil, err
	}
	return importer.New(database).WithLogger(a.Logger), nil
}

// Resumer opens sessions according to config and the connection's WSL choice
func (a *App) Resumer() *session.Resumer {
	cred := a.Connection.Current()
	return session.NewResumer(a.Config, cred.UseWSL, cred.WSLDistro)
}

// Close releases the database
func (a *App) Close() error {
	return a.Backend.Close()
}
