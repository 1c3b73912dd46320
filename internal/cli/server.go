package cli

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/config"
	"github.com/kilupskalvis/shoprestore/internal/server"
	"github.com/kilupskalvis/shoprestore/internal/service"
	"github.com/spf13/cobra"
)

var (
	serverListen      string
	serverLogLevel    string
	serverLogFormat   string
	serverTLSCert     string
	serverTLSKey      string
	serverWebhookURLs string
	serverRPM         int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the shoprestore HTTP server",
	Long:  "Commands for running the shoprestore HTTP server.",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the shoprestore HTTP server",
	Long: `Start the shoprestore HTTP server for the current workspace.

Logs are read from the workspace SQLite database and finished batch reports
are kept in bbolt. The Admin API token is read from ` + config.EnvAccessToken + `;
the bearer token guarding /api/ is read from ` + config.EnvAPIToken + `.

Examples:
  shoprestore server start
  shoprestore server start --listen 0.0.0.0:8720 --log-format text
  shoprestore server start --webhook-urls https://hooks.example.com/restore`,
	Run: runServerStart,
}

func init() {
	serverCmd.AddCommand(serverStartCmd)

	f := serverStartCmd.Flags()
	f.StringVar(&serverListen, "listen", os.Getenv("SHOPRESTORE_LISTEN"), "Listen address (host:port, default from config)")
	f.StringVar(&serverLogLevel, "log-level", envOrDefault("SHOPRESTORE_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	f.StringVar(&serverLogFormat, "log-format", envOrDefault("SHOPRESTORE_LOG_FORMAT", "json"), "Log format (json|text)")
	f.StringVar(&serverTLSCert, "tls-cert", os.Getenv("SHOPRESTORE_TLS_CERT"), "TLS certificate file")
	f.StringVar(&serverTLSKey, "tls-key", os.Getenv("SHOPRESTORE_TLS_KEY"), "TLS key file")
	f.StringVar(&serverWebhookURLs, "webhook-urls", os.Getenv("SHOPRESTORE_WEBHOOK_URLS"), "Comma-separated webhook URLs notified when a batch finishes")
	f.IntVar(&serverRPM, "rate-limit", server.DefaultServerConfig().RequestsPerMinute, "Requests per minute per client (0 disables)")
}

func runServerStart(_ *cobra.Command, _ []string) {
	logger := service.NewLogger(os.Stdout, serverLogLevel, serverLogFormat)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	listen := serverListen
	if listen == "" {
		listen = cfg.ListenAddr()
	}

	webhooks := cfg.WebhookURLs
	if extra := service.SplitList(serverWebhookURLs); len(extra) > 0 {
		webhooks = extra
	}

	svc, err := service.Open(service.Options{
		DatabasePath: cfg.DatabasePath(),
		ReportsPath:  cfg.ReportsPath(),
		ShopDomain:   cfg.ShopDomain,
		APIVersion:   cfg.APIVersion,
		AccessToken:  config.AccessToken(),
		WebhookURLs:  webhooks,
		RefreshDelay: cfg.RefreshDelay(),
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to open service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	if len(webhooks) > 0 {
		logger.Info("webhooks configured", "count", len(webhooks))
	}

	srvCfg := server.DefaultServerConfig()
	srvCfg.APIToken = config.APIToken()
	srvCfg.RequestsPerMinute = serverRPM
	if srvCfg.APIToken == "" {
		logger.Warn("API token not set, /api/ endpoints are unauthenticated", "env", config.EnvAPIToken)
	}

	serve(logger, listen, serverTLSCert, serverTLSKey, svc.Deps(), srvCfg)
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func serve(logger *slog.Logger, listen, tlsCert, tlsKey string, deps *server.Deps, cfg *server.ServerConfig) {
	h, handlerCleanup := server.Handler(deps, cfg, logger)
	defer handlerCleanup()

	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting shoprestore server", "listen", listen)
		var err error
		if tlsCert != "" && tlsKey != "" {
			err = srv.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
