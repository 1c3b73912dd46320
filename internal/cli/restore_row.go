package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/spf13/cobra"
)

var restoreRowCmd = &cobra.Command{
	Use:   "restore-row",
	Short: "Restore a single item without touching the log",
	Long: `Restore a single item directly. The id is resolved to a canonical
reference and the tags or metafield are written back. No log entry is
consumed.

Examples:
  shoprestore restore-row --id 123 --object-type Product --tag sale --tag vip
  shoprestore restore-row --id 77 --object-type ORDER --namespace custom --key note --type single_line_text_field --value hi`,
	Run: runRestoreRow,
}

var restoreRowArgs restore.Row

func init() {
	f := restoreRowCmd.Flags()
	f.StringVar(&restoreRowArgs.ID, "id", "", "Object id (numeric, order name, or gid://shopify/...)")
	f.StringVar(&restoreRowArgs.ObjectType, "object-type", "", "Object or metafield owner type")
	f.StringArrayVar(&restoreRowArgs.Tags, "tag", nil, "Tag to add back, repeat for multiple")
	f.StringVar(&restoreRowArgs.Namespace, "namespace", "", "Metafield namespace")
	f.StringVar(&restoreRowArgs.Key, "key", "", "Metafield key")
	f.StringVar(&restoreRowArgs.Type, "type", "", "Metafield type")
	f.StringVar(&restoreRowArgs.Value, "value", "", "Metafield value")
	restoreRowCmd.MarkFlagRequired("id")
}

func runRestoreRow(_ *cobra.Command, _ []string) {
	res, err := newClient().RestoreRow(context.Background(), restoreRowArgs)
	if err != nil {
		exitError("%v", err)
	}
	if res.Success {
		color.New(color.FgGreen).Println("Restored")
		return
	}
	red := color.New(color.FgRed)
	for _, ue := range res.Errors {
		red.Print("  ")
		fmt.Println(ue.Message)
	}
	exitError("restore rejected")
}
