// Package cli implements the command-line interface for shoprestore.
package cli

import (
	"fmt"
	"os"

	"github.com/kilupskalvis/shoprestore/internal/config"
	"github.com/kilupskalvis/shoprestore/internal/remote"
	"github.com/kilupskalvis/shoprestore/internal/service"
	"github.com/kilupskalvis/shoprestore/internal/store"
	"github.com/spf13/cobra"
)

// cmdContext holds the local resources used by offline commands.
type cmdContext struct {
	Config *config.Config
	Store  *store.Store
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads config and opens the local log store, migrating it if needed.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	if err := st.Prepare(); err != nil {
		st.Close()
		exitError("failed to prepare store: %v", err)
	}

	return &cmdContext{Config: cfg, Store: st}
}

var (
	serverURL string
	apiToken  string
)

var rootCmd = &cobra.Command{
	Use:   "shoprestore",
	Short: "Restore removed Shopify tags and metafields",
	Long: `shoprestore keeps an audit log of destructive tag and metafield
operations and replays their inverse against the Shopify Admin API.

Run "shoprestore server start" in an initialized workspace, then use the
logs, count and reports commands against it.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url",
		os.Getenv("SHOPRESTORE_SERVER_URL"),
		"Server base URL (env: SHOPRESTORE_SERVER_URL, default from config)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token",
		os.Getenv(config.EnvAPIToken),
		"API bearer token (env: "+config.EnvAPIToken+")")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(restoreRowCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(reportsCmd)
}

// newClient builds the retrying API client. The server URL comes from
// --url, then the workspace config, then the default address.
func newClient() remote.ServiceClient {
	url := serverURL
	if url == "" {
		if cfg, err := config.Load(); err == nil {
			url = cfg.ServerAddress()
		} else {
			url = config.DefaultServerURL
		}
	}
	return remote.NewRetryClient(remote.NewHTTPClient(url, apiToken), nil)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func envOrDefault(key, defaultVal string) string {
	return service.EnvOrDefault(key, defaultVal)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
