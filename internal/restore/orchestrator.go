// Package restore replays the inverse of recorded destructive operations.
//
// A LogEntry is expanded into RestoreJobs, each job's identifier is resolved
// to a canonical id, and the matching mutation is sent to the Admin API. Jobs
// run strictly one after another. Once every job has been attempted the
// source entry is deleted, whatever the individual outcomes were.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
)

// Phase is the lifecycle position of the orchestrator.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExpanding  Phase = "expanding"
	PhaseRunning    Phase = "running"
	PhaseFinalizing Phase = "finalizing"
)

// State is a snapshot of the orchestrator.
type State struct {
	Phase   Phase             `json:"phase"`
	EntryID int64             `json:"entryId,omitempty"`
	Batch   models.BatchState `json:"batch"`
}

// ProgressFunc receives the batch state after every change.
type ProgressFunc func(models.BatchState)

// LogDeleter removes a consumed log entry.
type LogDeleter interface {
	DeleteLog(ctx context.Context, id int64) error
}

// ReportSink persists finished batch reports.
type ReportSink interface {
	SaveReport(ctx context.Context, report *models.BatchReport) error
}

// Options configures an Orchestrator. Lookup, Mutator and Deleter are required.
type Options struct {
	Lookup  shopify.IDLookup
	Mutator shopify.Mutator
	Deleter LogDeleter
	Reports ReportSink
	// Notify is called with every finished report.
	Notify func(*models.BatchReport)
	Logger *slog.Logger
}

// Orchestrator runs restore batches, one at a time.
type Orchestrator struct {
	resolver *Resolver
	executor *Executor
	deleter  LogDeleter
	reports  ReportSink
	notify   func(*models.BatchReport)
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates an idle Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		resolver: NewResolver(opts.Lookup),
		executor: NewExecutor(opts.Mutator),
		deleter:  opts.Deleter,
		reports:  opts.Reports,
		notify:   opts.Notify,
		logger:   logger,
		now:      time.Now,
		state:    State{Phase: PhaseIdle},
	}
}

// State returns a snapshot of the current phase and batch progress.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Expand builds the jobs for an entry, skipping items that carry nothing to
// restore. Order is preserved and indices are contiguous from 0.
func Expand(entry *models.LogEntry) []models.RestoreJob {
	kind := models.JobKindMetafield
	if entry.Operation == models.OperationTagsRemoved {
		kind = models.JobKindTag
	}

	var jobs []models.RestoreJob
	for _, item := range entry.Value {
		if !item.Restorable(entry.Operation) {
			continue
		}
		jobs = append(jobs, models.RestoreJob{
			Index:      len(jobs),
			Source:     item,
			ObjectType: entry.ObjectType,
			Kind:       kind,
		})
	}
	return jobs
}

// Run restores every item of entry and then deletes it. progress may be nil.
//
// Run returns ErrBatchInFlight if another batch is active and
// ErrNothingToRestore, without emitting progress, when no item qualifies.
// Job failures are recorded in the report and never returned.
func (o *Orchestrator) Run(ctx context.Context, entry *models.LogEntry, progress ProgressFunc) (*models.BatchReport, error) {
	if err := o.begin(entry.ID); err != nil {
		return nil, err
	}
	defer o.setPhase(PhaseIdle)

	jobs := Expand(entry)
	if len(jobs) == 0 {
		return nil, ErrNothingToRestore
	}

	emit := func(s models.BatchState) {
		if progress != nil {
			progress(s)
		}
	}

	report := &models.BatchReport{
		ID:         uuid.New().String(),
		EntryID:    entry.ID,
		Operation:  entry.Operation,
		ObjectType: entry.ObjectType,
		StartedAt:  o.now().UTC(),
		Total:      len(jobs),
		Outcomes:   make([]models.JobOutcome, 0, len(jobs)),
	}

	o.logger.Info("restore batch started", "entry_id", entry.ID, "operation", entry.Operation, "jobs", len(jobs))
	emit(o.update(func(s *State) {
		s.Phase = PhaseRunning
		s.Batch = models.BatchState{Total: len(jobs), Active: true}
	}))

	for _, job := range jobs {
		outcome, err := o.attempt(ctx, job)
		if err != nil {
			o.logger.Warn("restore job failed",
				"entry_id", entry.ID, "index", job.Index, "item_id", job.Source.ID,
				"category", category(err), "error", err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		emit(o.update(func(s *State) { s.Batch.Completed++ }))
	}

	o.setPhase(PhaseFinalizing)
	if err := o.deleter.DeleteLog(ctx, entry.ID); err != nil {
		logDeleteFailures.Inc()
		report.DeleteErr = err.Error()
		o.logger.Error("delete restored log entry", "entry_id", entry.ID, "error", err)
	}

	report.FinishedAt = o.now().UTC()
	batchDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if report.Failed == 0 {
		batchesTotal.WithLabelValues("complete").Inc()
	} else {
		batchesTotal.WithLabelValues("partial").Inc()
	}

	if o.reports != nil {
		if err := o.reports.SaveReport(ctx, report); err != nil {
			o.logger.Error("save batch report", "report_id", report.ID, "error", err)
		}
	}

	o.logger.Info("restore batch finished",
		"entry_id", entry.ID, "report_id", report.ID,
		"succeeded", report.Succeeded, "failed", report.Failed)

	emit(o.update(func(s *State) { s.Batch.Active = false }))

	if o.notify != nil {
		o.notify(report)
	}
	return report, nil
}

// RestoreRow resolves and restores a single row outside of any batch. It
// does not take the batch lock and does not touch the log store.
func (o *Orchestrator) RestoreRow(ctx context.Context, row Row) (models.JobOutcome, error) {
	job, err := row.Job()
	if err != nil {
		return models.JobOutcome{ItemID: row.ID, Err: err.Error()}, err
	}
	return o.attempt(ctx, job)
}

// attempt resolves and executes one job. The outcome is complete even when
// an error is returned.
func (o *Orchestrator) attempt(ctx context.Context, job models.RestoreJob) (models.JobOutcome, error) {
	id, err := o.resolver.Resolve(ctx, job.Kind, job.ObjectType, job.Source.ID)
	if err != nil {
		jobsTotal.WithLabelValues(string(job.Kind), category(err)).Inc()
		return models.JobOutcome{
			Index:  job.Index,
			ItemID: job.Source.ID,
			Kind:   job.Kind,
			Err:    err.Error(),
		}, err
	}
	job.ResolvedID = id

	outcome, err := o.executor.Execute(ctx, id, job)
	jobsTotal.WithLabelValues(string(job.Kind), category(err)).Inc()
	return outcome, err
}

func (o *Orchestrator) begin(entryID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != PhaseIdle {
		return fmt.Errorf("entry %d: %w", o.state.EntryID, ErrBatchInFlight)
	}
	o.state = State{Phase: PhaseExpanding, EntryID: entryID}
	return nil
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Phase = p
	if p == PhaseIdle {
		o.state.EntryID = 0
	}
}

func (o *Orchestrator) update(fn func(*State)) models.BatchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	return o.state.Batch
}
