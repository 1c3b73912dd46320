// Command shoprestore-server runs the restore HTTP server without a
// workspace directory. Everything is configured by flags and environment.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/config"
	"github.com/kilupskalvis/shoprestore/internal/server"
	"github.com/kilupskalvis/shoprestore/internal/service"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
)

func main() {
	listen := flag.String("listen", service.EnvOrDefault("SHOPRESTORE_LISTEN", "0.0.0.0:8720"), "Listen address")
	dataDir := flag.String("data-dir", service.EnvOrDefault("SHOPRESTORE_DATA_DIR", "/var/lib/shoprestore"), "Data directory")
	shop := flag.String("shop", os.Getenv("SHOPRESTORE_SHOP"), "Shop domain")
	apiVersion := flag.String("api-version", service.EnvOrDefault("SHOPRESTORE_API_VERSION", shopify.DefaultAPIVersion), "Admin API version")
	logLevel := flag.String("log-level", service.EnvOrDefault("SHOPRESTORE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", service.EnvOrDefault("SHOPRESTORE_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("SHOPRESTORE_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("SHOPRESTORE_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("SHOPRESTORE_WEBHOOK_URLS"), "Comma-separated webhook URLs notified when a batch finishes")
	refreshDelay := flag.Duration("refresh-delay", config.DefaultRefreshDelay, "Log view refresh debounce")
	flag.Parse()

	logger := service.NewLogger(os.Stdout, *logLevel, *logFormat)

	if *shop == "" {
		logger.Error("shop domain is required (--shop or SHOPRESTORE_SHOP)")
		os.Exit(1)
	}
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err, "path", *dataDir)
		os.Exit(1)
	}

	webhooks := service.SplitList(*webhookURLs)
	svc, err := service.Open(service.Options{
		DatabasePath: filepath.Join(*dataDir, config.DatabaseFile),
		ReportsPath:  filepath.Join(*dataDir, config.ReportsFile),
		ShopDomain:   *shop,
		APIVersion:   *apiVersion,
		AccessToken:  config.AccessToken(),
		WebhookURLs:  webhooks,
		RefreshDelay: *refreshDelay,
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

	cfg := server.DefaultServerConfig()
	cfg.APIToken = config.APIToken()
	if cfg.APIToken == "" {
		logger.Warn("API token not set, /api/ endpoints are unauthenticated", "env", config.EnvAPIToken)
	}

	h, handlerCleanup := server.Handler(svc.Deps(), cfg, logger)
	defer handlerCleanup()

	srv := &http.Server{
		Addr:              *listen,
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
		logger.Info("starting shoprestore-server", "listen", *listen, "data_dir", *dataDir, "shop", *shop)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
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
