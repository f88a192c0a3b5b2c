package progress

import (
	"context"
	"errors"

	"studytrail/internal/models"
	"studytrail/internal/remote"
)

// SyncOp names a reconciliation operation
type SyncOp string

const (
	OpFetch       SyncOp = "fetch"
	OpPush        SyncOp = "push"
	OpManualMerge SyncOp = "manual_merge"
)

// Outcome is what became of a sync operation
type Outcome int

const (
	// OutcomeApplied means the operation completed
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means there was nothing to do: no identity, no token,
	// no remote store, or the work was already done
	OutcomeSkipped
	// OutcomeNotFound means the remote store has no record for the identity
	OutcomeNotFound
	// OutcomeOffline means the remote store could not be reached
	OutcomeOffline
	// OutcomeRejected means the remote store refused the request or its payload was unusable
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeOffline:
		return "offline"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SyncResult reports the outcome of one sync operation. Err is set for
// OutcomeOffline and OutcomeRejected.
type SyncResult struct {
	Op      SyncOp
	Outcome Outcome
	Err     error
}

// Degraded reports whether the session should carry on local-only after this result
func (r SyncResult) Degraded() bool {
	return r.Outcome == OutcomeOffline || r.Outcome == OutcomeRejected
}

func skipped(op SyncOp) SyncResult {
	return SyncResult{Op: op, Outcome: OutcomeSkipped}
}

// classify maps a remote error to an outcome
func classify(op SyncOp, err error) SyncResult {
	switch {
	case err == nil:
		return SyncResult{Op: op, Outcome: OutcomeApplied}
	case errors.Is(err, remote.ErrNotFound):
		return SyncResult{Op: op, Outcome: OutcomeNotFound}
	case errors.Is(err, remote.ErrUnauthorized),
		errors.Is(err, remote.ErrRejected),
		errors.Is(err, remote.ErrRateLimited),
		errors.Is(err, models.ErrInvalidProgress):
		return SyncResult{Op: op, Outcome: OutcomeRejected, Err: err}
	case errors.Is(err, context.Canceled):
		return SyncResult{Op: op, Outcome: OutcomeSkipped, Err: err}
	default:
		return SyncResult{Op: op, Outcome: OutcomeOffline, Err: err}
	}
}
