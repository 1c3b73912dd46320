package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect finished restore batches",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batch reports",
	Run:   runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a batch report with its failures",
	Args:  cobra.ExactArgs(1),
	Run:   runReportsShow,
}

var (
	reportsLimit int
	reportsJSON  bool
)

func init() {
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd)
	reportsListCmd.Flags().IntVarP(&reportsLimit, "n", "n", 20, "Number of reports to show")
	reportsShowCmd.Flags().BoolVar(&reportsJSON, "json", false, "Print raw JSON")
}

func runReportsList(_ *cobra.Command, _ []string) {
	reports, err := newClient().ListReports(context.Background(), reportsLimit)
	if err != nil {
		exitError("%v", err)
	}
	if len(reports) == 0 {
		fmt.Println("No restore reports")
		return
	}

	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	for _, r := range reports {
		yellow.Printf("%s ", shortID(r.ID))
		fmt.Printf("entry %-6d %-18s %s  %d/%d ok",
			r.EntryID, r.Operation, r.FinishedAt.Local().Format("2006-01-02 15:04"), r.Succeeded, r.Total)
		if r.Failed > 0 {
			red.Printf("  %d failed", r.Failed)
		}
		fmt.Println()
	}
}

func runReportsShow(_ *cobra.Command, args []string) {
	r, err := newClient().GetReport(context.Background(), args[0])
	if err != nil {
		exitError("%v", err)
	}
	if reportsJSON {
		printJSON(r)
		return
	}

	color.New(color.FgYellow).Printf("report %s\n", r.ID)
	fmt.Printf("Entry:     %d (%s, %s)\n", r.EntryID, r.Operation, r.ObjectType)
	fmt.Printf("Started:   %s\n", r.StartedAt.Local().Format("Mon Jan 2 15:04:05 2006"))
	fmt.Printf("Finished:  %s\n", r.FinishedAt.Local().Format("Mon Jan 2 15:04:05 2006"))
	fmt.Printf("Result:    %d succeeded, %d failed of %d\n", r.Succeeded, r.Failed, r.Total)
	if r.DeleteErr != "" {
		color.New(color.FgYellow).Printf("Delete:    %s\n", r.DeleteErr)
	}
	printFailures(r.Failures())
}
