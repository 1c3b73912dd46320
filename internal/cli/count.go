package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count resources carrying tags",
	Long: `Count resources carrying any of the given tags. One count query is
issued per tag and the results are summed.

Examples:
  shoprestore count --resource products --tag sale --tag vip
  shoprestore count --resource orders --tag gift`,
	Run: runCount,
}

var (
	countResource string
	countTags     []string
)

func init() {
	countCmd.Flags().StringVar(&countResource, "resource", "", "Resource name, e.g. products, orders, customers")
	countCmd.Flags().StringArrayVar(&countTags, "tag", nil, "Tag to count, repeat for multiple")
	countCmd.MarkFlagRequired("resource")
}

func runCount(_ *cobra.Command, _ []string) {
	res, err := newClient().Count(context.Background(), countResource, countTags)
	if err != nil {
		exitError("%v", err)
	}
	color.New(color.FgCyan).Printf("%s: ", res.Resource)
	fmt.Println(res.TagCount)
}
