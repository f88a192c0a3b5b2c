package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"studytrail/internal/progress"
)

// output writes a command's result as text or as indented JSON
func output(w io.Writer, opts *RootOptions, value any, text string, args ...any) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	_, err := fmt.Fprintf(w, text+"\n", args...)
	return err
}

// syncView is the printable form of a sync result
type syncView struct {
	Op      string `json:"op"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func newSyncView(r progress.SyncResult) syncView {
	v := syncView{Op: string(r.Op), Outcome: r.Outcome.String()}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// describeSync explains a sync outcome to the learner
func describeSync(r progress.SyncResult) string {
	switch r.Outcome {
	case progress.OutcomeApplied:
		return "Progress is in step with the remote store."
	case progress.OutcomeNotFound:
		return "Nothing saved remotely yet."
	case progress.OutcomeOffline:
		return "The remote store could not be reached. Progress is saved on this device."
	case progress.OutcomeRejected:
		return "The remote store refused the request. Progress is saved on this device."
	default:
		return "Nothing to sync."
	}
}
