// Package service assembles the stores, the Admin API client, the restore
// engine and the log view into the dependencies the HTTP server serves.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/reportstore"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/kilupskalvis/shoprestore/internal/server"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
	"github.com/kilupskalvis/shoprestore/internal/store"
	"github.com/kilupskalvis/shoprestore/internal/view"
)

// Options configures Open.
type Options struct {
	DatabasePath string
	ReportsPath  string
	// Endpoint overrides the GraphQL URL derived from ShopDomain.
	Endpoint     string
	ShopDomain   string
	APIVersion   string
	AccessToken  string
	WebhookURLs  []string
	RefreshDelay time.Duration
	Logger       *slog.Logger
}

// Service holds the opened resources.
type Service struct {
	Store        *store.Store
	Reports      *reportstore.BboltStore
	Client       shopify.ClientInterface
	Orchestrator *restore.Orchestrator
	View         *view.Controller
	Webhooks     *server.WebhookNotifier
}

// Open opens the stores and wires the restore engine.
func Open(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AccessToken == "" {
		return nil, errors.New("admin API access token is not set")
	}

	st, err := store.New(opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	if err := st.Prepare(); err != nil {
		st.Close()
		return nil, fmt.Errorf("prepare log store: %w", err)
	}

	reports, err := reportstore.NewBboltStore(opts.ReportsPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open report store: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = shopify.AdminEndpoint(opts.ShopDomain, opts.APIVersion)
	}
	client := shopify.NewClient(endpoint, opts.AccessToken, logger)

	return assemble(st, reports, client, opts.WebhookURLs, opts.RefreshDelay, logger), nil
}

func assemble(st *store.Store, reports *reportstore.BboltStore, client shopify.ClientInterface,
	webhookURLs []string, refreshDelay time.Duration, logger *slog.Logger) *Service {
	webhooks := server.NewWebhookNotifier(&server.WebhookConfig{URLs: webhookURLs}, logger)

	orch := restore.NewOrchestrator(restore.Options{
		Lookup:  client,
		Mutator: client,
		Deleter: st,
		Reports: reports,
		Notify:  func(r *models.BatchReport) { webhooks.NotifyBatch(r) },
		Logger:  logger,
	})

	return &Service{
		Store:        st,
		Reports:      reports,
		Client:       client,
		Orchestrator: orch,
		View:         view.NewController(st, orch, refreshDelay, logger),
		Webhooks:     webhooks,
	}
}

// Deps returns the HTTP server dependencies.
func (s *Service) Deps() *server.Deps {
	return &server.Deps{
		Logs:     s.Store,
		Restorer: s.Orchestrator,
		Counter:  s.Client,
		View:     s.View,
		Reports:  s.Reports,
	}
}

// Close releases both stores.
func (s *Service) Close() error {
	return errors.Join(s.Store.Close(), s.Reports.Close())
}

// SplitList splits a comma separated flag value, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// NewLogger builds the JSON or text slog logger selected by flags.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if w == nil {
		w = os.Stdout
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// EnvOrDefault returns the environment value of key, or defaultVal when unset.
func EnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
