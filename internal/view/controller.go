// Package view holds the state behind the restore log screen: the log list,
// the confirm modal, the restore progress popup, and the post-restore
// refresh.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/restore"
)

// DefaultRefreshDelay is the debounce between a finished batch and the log reload.
const DefaultRefreshDelay = 50 * time.Millisecond

// Modal texts.
const (
	ConfirmTitle   = "Confirm Restore"
	ConfirmMessage = "Are you sure you want to restore the removed data?"
)

// Banner texts.
const (
	BannerRestoring = "Restoring..."
	BannerCompleted = "Restore Completed"
)

var (
	ErrUnknownEntry     = errors.New("log entry not found")
	ErrRowOutOfRange    = errors.New("row index out of range")
	ErrNoPendingRestore = errors.New("no restore awaiting confirmation")
)

// LogSource lists the stored log entries.
type LogSource interface {
	ListLogs(ctx context.Context) ([]models.LogEntry, error)
}

// Runner executes a restore batch.
type Runner interface {
	Run(ctx context.Context, entry *models.LogEntry, progress restore.ProgressFunc) (*models.BatchReport, error)
}

// Modal is the confirm dialog.
type Modal struct {
	IsOpen  bool             `json:"isOpen"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Target  *models.LogEntry `json:"target,omitempty"`
}

// Snapshot is a copy of the full view state.
type Snapshot struct {
	Logs        []models.LogEntry   `json:"logs"`
	SelectedRow *int                `json:"selectedRow"`
	Modal       Modal               `json:"modal"`
	Batch       models.BatchState   `json:"batch"`
	Popup       bool                `json:"popup"`
	Running     bool                `json:"running"`
	Banner      string              `json:"banner,omitempty"`
	LastReport  *models.BatchReport `json:"lastReport,omitempty"`
	Failures    []models.JobOutcome `json:"failures,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Controller serializes operator actions against the view state.
type Controller struct {
	source       LogSource
	runner       Runner
	logger       *slog.Logger
	refreshDelay time.Duration

	mu         sync.Mutex
	logs       []models.LogEntry
	selected   *int
	modal      Modal
	batch      models.BatchState
	popup      bool
	running    bool
	lastReport *models.BatchReport
	lastErr    string

	cycle *refreshCycle
}

// refreshCycle is one one-shot refresh notification. Each confirmed batch
// gets its own, so a refresh left over from an earlier batch never closes
// the channel of a batch that is still running.
type refreshCycle struct {
	done   chan struct{}
	timer  *time.Timer
	closed bool
}

// finish must be called with the controller mu held.
func (r *refreshCycle) finish() {
	if !r.closed {
		close(r.done)
		r.closed = true
	}
}

// NewController creates a Controller. A zero refreshDelay uses DefaultRefreshDelay.
func NewController(source LogSource, runner Runner, refreshDelay time.Duration, logger *slog.Logger) *Controller {
	if refreshDelay <= 0 {
		refreshDelay = DefaultRefreshDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	idle := &refreshCycle{done: make(chan struct{})}
	idle.finish()
	return &Controller{
		source:       source,
		runner:       runner,
		logger:       logger,
		refreshDelay: refreshDelay,
		cycle:        idle,
	}
}

// Load fetches the log list and replaces the current one.
func (c *Controller) Load(ctx context.Context) error {
	logs, err := c.source.ListLogs(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		return fmt.Errorf("load logs: %w", err)
	}
	c.setLogs(logs)
	return nil
}

// setLogs must be called with mu held.
func (c *Controller) setLogs(logs []models.LogEntry) {
	c.logs = logs
	c.lastErr = ""
	if c.selected != nil && *c.selected >= len(logs) {
		c.selected = nil
	}
}

// ToggleRow selects row i, or deselects it if it is already selected.
func (c *Controller) ToggleRow(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.logs) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	if c.selected != nil && *c.selected == i {
		c.selected = nil
		return nil
	}
	c.selected = &i
	return nil
}

// RequestRestore opens the confirm modal for a loaded entry.
func (c *Controller) RequestRestore(entryID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.logs {
		if c.logs[i].ID == entryID {
			target := c.logs[i]
			c.modal = Modal{IsOpen: true, Title: ConfirmTitle, Message: ConfirmMessage, Target: &target}
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownEntry, entryID)
}

// Cancel closes the modal without restoring.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modal = Modal{}
}

// Confirm closes the modal and starts the restore in the background. It
// returns once the batch has been handed off; Done reports the refresh
// that follows it.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if !c.modal.IsOpen || c.modal.Target == nil {
		c.mu.Unlock()
		return ErrNoPendingRestore
	}
	target := c.modal.Target
	c.modal = Modal{}
	if c.running {
		c.mu.Unlock()
		return restore.ErrBatchInFlight
	}
	c.running = true
	cycle := &refreshCycle{done: make(chan struct{})}
	c.cycle = cycle
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), target, cycle)
	return nil
}

// run executes one batch. The log list is reloaded only when the batch
// consumed its entry; otherwise the cycle closes without a refresh.
func (c *Controller) run(ctx context.Context, target *models.LogEntry, cycle *refreshCycle) {
	report, err := c.runner.Run(ctx, target, c.onProgress)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	switch {
	case err == nil && report.DeleteErr != "":
		c.lastReport = report
		c.lastErr = "delete log entry: " + report.DeleteErr
		c.logger.Warn("restored entry was not deleted, skipping refresh", "entry_id", target.ID)
		cycle.finish()
	case err == nil:
		c.lastReport = report
		c.scheduleLocked(ctx, cycle)
	case errors.Is(err, restore.ErrNothingToRestore):
		c.logger.Info("nothing to restore", "entry_id", target.ID)
		cycle.finish()
	default:
		c.lastErr = err.Error()
		c.logger.Error("restore batch rejected", "entry_id", target.ID, "error", err)
		cycle.finish()
	}
}

func (c *Controller) onProgress(s models.BatchState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = s
	c.popup = true
}

// Dismiss hides the completed-restore popup. It fails while a batch runs.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return restore.ErrBatchInFlight
	}
	c.popup = false
	return nil
}

// ScheduleRefresh reloads the logs after the refresh delay. A call while a
// refresh is outstanding, or while a batch runs, joins the pending cycle.
func (c *Controller) ScheduleRefresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	if c.cycle.closed {
		c.cycle = &refreshCycle{done: make(chan struct{})}
	}
	c.scheduleLocked(ctx, c.cycle)
}

// scheduleLocked must be called with mu held.
func (c *Controller) scheduleLocked(ctx context.Context, cycle *refreshCycle) {
	if cycle.timer != nil || cycle.closed {
		return
	}
	cycle.timer = time.AfterFunc(c.refreshDelay, func() { c.refresh(ctx, cycle) })
}

// Done returns a channel closed when the refresh of the latest batch, or of
// the latest ScheduleRefresh, has completed. With nothing pending the
// channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle.done
}

func (c *Controller) refresh(ctx context.Context, cycle *refreshCycle) {
	logs, err := c.source.ListLogs(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		c.logger.Error("refresh logs", "error", err)
	} else {
		c.setLogs(logs)
	}
	cycle.finish()
}

// Snapshot returns a copy of the view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Logs:       append([]models.LogEntry(nil), c.logs...),
		Modal:      c.modal,
		Batch:      c.batch,
		Popup:      c.popup,
		Running:    c.running,
		LastReport: c.lastReport,
		Error:      c.lastErr,
	}
	if s.Logs == nil {
		s.Logs = []models.LogEntry{}
	}
	if c.selected != nil {
		i := *c.selected
		s.SelectedRow = &i
	}
	if c.popup {
		if c.batch.Active {
			s.Banner = BannerRestoring
		} else {
			s.Banner = BannerCompleted
		}
	}
	if c.lastReport != nil {
		s.Failures = c.lastReport.Failures()
	}
	return s
}
