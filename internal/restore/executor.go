package restore

import (
	"context"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
)

// Executor replays the inverse mutation of a job. It never retries.
type Executor struct {
	mutator shopify.Mutator
}

// NewExecutor creates an Executor backed by the given mutator.
func NewExecutor(mutator shopify.Mutator) *Executor {
	return &Executor{mutator: mutator}
}

// Execute issues one mutation for the job and normalizes its result. The
// returned error is a *MutationUserError, a transport error, or
// ErrInvalidRow; the outcome is filled in every case.
func (e *Executor) Execute(ctx context.Context, canonicalID string, job models.RestoreJob) (models.JobOutcome, error) {
	outcome := models.JobOutcome{
		Index:      job.Index,
		ItemID:     job.Source.ID,
		ResolvedID: canonicalID,
		Kind:       job.Kind,
	}

	var (
		userErrs []models.UserError
		err      error
	)
	switch job.Kind {
	case models.JobKindTag:
		userErrs, err = e.mutator.TagsAdd(ctx, canonicalID, job.Source.RemovedTags)
	case models.JobKindMetafield:
		if job.Source.Data == nil {
			err = ErrInvalidRow
			break
		}
		d := job.Source.Data
		userErrs, err = e.mutator.MetafieldsSet(ctx, shopify.MetafieldInput{
			OwnerID:   canonicalID,
			Namespace: d.Namespace,
			Key:       d.Key,
			Type:      d.Type,
			Value:     d.Value,
		})
	default:
		err = ErrInvalidRow
	}

	if err != nil {
		outcome.Err = err.Error()
		return outcome, err
	}
	if len(userErrs) > 0 {
		outcome.Errors = userErrs
		return outcome, &MutationUserError{Kind: job.Kind, Errors: userErrs}
	}

	outcome.Success = true
	return outcome, nil
}
