package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/remote"
	"github.com/kilupskalvis/shoprestore/internal/view"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect, delete and restore log entries",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded operations",
	Run:   runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the items of a log entry",
	Args:  cobra.ExactArgs(1),
	Run:   runLogsShow,
}

var logsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a log entry without restoring it",
	Args:  cobra.ExactArgs(1),
	Run:   runLogsDelete,
}

var logsRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore every item of a log entry",
	Long: `Restore every item of a log entry.

The entry is restored item by item on the server. Once every item has been
attempted the entry is deleted, whether or not every item succeeded.
Failed items are listed at the end.`,
	Args: cobra.ExactArgs(1),
	Run:  runLogsRestore,
}

var logsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import log entries into the workspace database",
	Long: `Import log entries from a JSON file into the local workspace database.
The file holds either a single entry or an array of entries.`,
	Args: cobra.ExactArgs(1),
	Run:  runLogsImport,
}

var (
	logsJSON      bool
	logsYes       bool
	logsPoll      time.Duration
	logsKeepPopup bool
)

func init() {
	logsCmd.AddCommand(logsListCmd, logsShowCmd, logsDeleteCmd, logsRestoreCmd, logsImportCmd)

	logsListCmd.Flags().BoolVar(&logsJSON, "json", false, "Print raw JSON")
	logsShowCmd.Flags().BoolVar(&logsJSON, "json", false, "Print raw JSON")
	logsRestoreCmd.Flags().BoolVarP(&logsYes, "yes", "y", false, "Skip the confirmation prompt")
	logsRestoreCmd.Flags().DurationVar(&logsPoll, "poll", 200*time.Millisecond, "Progress polling interval")
	logsRestoreCmd.Flags().BoolVar(&logsKeepPopup, "keep", false, "Leave the completed banner for other viewers")
}

func parseEntryID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		exitError("invalid log id: %s", arg)
	}
	return id
}

func runLogsList(_ *cobra.Command, _ []string) {
	logs, err := newClient().ListLogs(context.Background())
	if err != nil {
		exitError("%v", err)
	}

	if logsJSON {
		printJSON(logs)
		return
	}
	if len(logs) == 0 {
		fmt.Println("No log entries")
		return
	}

	yellow := color.New(color.FgYellow)
	for _, e := range logs {
		yellow.Printf("%-6d ", e.ID)
		fmt.Printf("%-18s %-12s %-16s %3d items  %s\n",
			e.Operation, e.ObjectType, e.UserName, len(e.Value),
			e.Time.Local().Format("2006-01-02 15:04"))
	}
}

func findEntry(ctx context.Context, c remote.ServiceClient, id int64) models.LogEntry {
	logs, err := c.ListLogs(ctx)
	if err != nil {
		exitError("%v", err)
	}
	for _, e := range logs {
		if e.ID == id {
			return e
		}
	}
	exitError("log entry %d not found", id)
	return models.LogEntry{}
}

func runLogsShow(_ *cobra.Command, args []string) {
	id := parseEntryID(args[0])
	entry := findEntry(context.Background(), newClient(), id)

	if logsJSON {
		printJSON(entry)
		return
	}

	color.New(color.FgYellow).Printf("entry %d\n", entry.ID)
	fmt.Printf("Operation: %s\n", entry.Operation)
	fmt.Printf("Object:    %s\n", entry.ObjectType)
	fmt.Printf("User:      %s\n", entry.UserName)
	fmt.Printf("Date:      %s\n\n", entry.Time.Local().Format("Mon Jan 2 15:04:05 2006"))

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, item := range entry.Value {
		mark := green.Sprint("ok  ")
		if !item.Success {
			mark = red.Sprint("fail")
		}
		detail := strings.Join(item.RemovedTags, ", ")
		if item.Data != nil {
			detail = fmt.Sprintf("%s.%s = %q", item.Data.Namespace, item.Data.Key, item.Data.Value)
		}
		restorable := ""
		if !item.Restorable(entry.Operation) {
			restorable = color.New(color.FgHiBlack).Sprint(" (nothing to restore)")
		}
		fmt.Printf("  %s %-14s %s%s\n", mark, item.DisplayID(), detail, restorable)
	}
}

func runLogsDelete(_ *cobra.Command, args []string) {
	id := parseEntryID(args[0])
	if err := newClient().DeleteLog(context.Background(), id); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Deleted log entry %d\n", id)
}

func runLogsRestore(_ *cobra.Command, args []string) {
	id := parseEntryID(args[0])
	ctx := context.Background()
	c := newClient()

	if _, err := c.LoadView(ctx); err != nil {
		exitError("%v", err)
	}
	snap, err := c.RequestRestore(ctx, id)
	if err != nil {
		exitError("%v", err)
	}

	if !logsYes && !confirm(snap.Modal) {
		if _, err := c.CancelRestore(ctx); err != nil {
			exitError("%v", err)
		}
		fmt.Println("Restore cancelled")
		return
	}

	snap, err = c.ConfirmRestore(ctx)
	if err != nil {
		var re *remote.RemoteError
		if errors.As(err, &re) && re.Code == "batch_in_flight" {
			exitError("another restore is still running")
		}
		exitError("%v", err)
	}

	last := -1
	for snap.Running {
		if snap.Batch.Completed != last && snap.Batch.Total > 0 {
			last = snap.Batch.Completed
			fmt.Printf("\r%s %d/%d", snap.Banner, snap.Batch.Completed, snap.Batch.Total)
		}
		time.Sleep(logsPoll)
		if snap, err = c.ViewSnapshot(ctx); err != nil {
			exitError("%v", err)
		}
	}
	if last >= 0 {
		fmt.Println()
	}

	printRestoreResult(snap, id)

	if snap.Popup && !logsKeepPopup {
		if _, err := c.DismissRestore(ctx); err != nil {
			exitError("%v", err)
		}
	}
}

func confirm(m view.Modal) bool {
	color.New(color.Bold).Println(m.Title)
	fmt.Printf("%s [y/N] ", m.Message)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printRestoreResult(snap *view.Snapshot, entryID int64) {
	if snap.Error != "" {
		exitError("%s", snap.Error)
	}
	r := snap.LastReport
	if r == nil || r.EntryID != entryID {
		fmt.Println("Nothing to restore")
		return
	}

	color.New(color.FgGreen).Println(snap.Banner)
	fmt.Printf("Report %s: %d succeeded, %d failed of %d\n", shortID(r.ID), r.Succeeded, r.Failed, r.Total)
	if r.DeleteErr != "" {
		color.New(color.FgYellow).Printf("Log entry was not deleted: %s\n", r.DeleteErr)
	}
	printFailures(snap.Failures)
}

func printFailures(failures []models.JobOutcome) {
	if len(failures) == 0 {
		return
	}
	red := color.New(color.FgRed)
	fmt.Println("Failures:")
	for _, f := range failures {
		red.Printf("  #%d %s: ", f.Index, f.ItemID)
		fmt.Println(failureText(f))
	}
}

func failureText(o models.JobOutcome) string {
	if o.Err != "" {
		return o.Err
	}
	msgs := make([]string, len(o.Errors))
	for i, ue := range o.Errors {
		if len(ue.Field) > 0 {
			msgs[i] = strings.Join(ue.Field, ".") + ": " + ue.Message
		} else {
			msgs[i] = ue.Message
		}
	}
	return strings.Join(msgs, "; ")
}

func runLogsImport(_ *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("%v", err)
	}
	entries, err := decodeEntries(data)
	if err != nil {
		exitError("parse %s: %v", args[0], err)
	}

	c := initContext()
	defer c.Close()

	ctx := context.Background()
	for i := range entries {
		id, err := c.Store.InsertLog(ctx, &entries[i])
		if err != nil {
			exitError("import entry %d: %v", i, err)
		}
		fmt.Printf("Imported %s as entry %d\n", entries[i].Operation, id)
	}
}

// decodeEntries accepts a single entry or an array of entries.
func decodeEntries(data []byte) ([]models.LogEntry, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var entries []models.LogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var entry models.LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return []models.LogEntry{entry}, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitError("%v", err)
	}
}
