package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/shoprestore/internal/config"
	"github.com/kilupskalvis/shoprestore/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a shoprestore workspace",
	Long: `Initialize a shoprestore workspace in the current directory.
This creates a .shoprestore directory holding the config file, the log
database and the batch report database.

The Admin API access token is never stored; export it as
` + config.EnvAccessToken + ` before starting the server.`,
	Run: runInit,
}

var (
	initShop       string
	initAPIVersion string
)

func init() {
	initCmd.Flags().StringVar(&initShop, "shop", "", "Shop domain, e.g. demo.myshopify.com")
	initCmd.Flags().StringVar(&initAPIVersion, "api-version", "", "Admin API version (YYYY-MM)")
	initCmd.MarkFlagRequired("shop")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindRoot(); err == nil {
		exitError("shoprestore workspace already exists")
	}

	cfg, err := config.Initialize(initShop)
	if err != nil {
		exitError("%v", err)
	}
	if initAPIVersion != "" {
		cfg.APIVersion = initAPIVersion
		if err := cfg.Validate(); err != nil {
			exitError("%v", err)
		}
		if err := cfg.Save(); err != nil {
			exitError("%v", err)
		}
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to create database: %v", err)
	}
	defer st.Close()

	if err := st.Prepare(); err != nil {
		exitError("failed to initialize database: %v", err)
	}

	color.New(color.FgGreen).Printf("Initialized empty shoprestore workspace in %s\n", cfg.Path())
	fmt.Printf("Shop: %s\n", cfg.ShopDomain)
	if config.AccessToken() == "" {
		color.New(color.FgYellow).Printf("Set %s before running the server.\n", config.EnvAccessToken)
	}
}
