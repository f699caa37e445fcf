package dispatch

import (
	"encoding/json"

	"github.com/samber/lo"
)

// Item status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDryRun  = "dry_run"
)

// Exit codes derived from an outcome.
const (
	ExitOK             = 0
	ExitPartialFailure = 2
)

// Result is the result of a single item in a dispatch run.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Outcome holds the counters of a finished dispatch run.
// Succeeded + Failed always equals Attempted.
type Outcome struct {
	Attempted   int      `json:"attempted"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	DryRun      bool     `json:"dry_run"`
	Interrupted bool     `json:"interrupted,omitempty"`
	Results     []Result `json:"results"`
}

func (o *Outcome) record(r Result) {
	o.Attempted++
	if r.Status == StatusError {
		o.Failed++
	} else {
		o.Succeeded++
	}
	o.Results = append(o.Results, r)
}

// FailedResults returns the results of the items whose action failed.
func (o *Outcome) FailedResults() []Result {
	return lo.Filter(o.Results, func(r Result, _ int) bool {
		return r.Status == StatusError
	})
}

// SuccessRate returns the percentage of attempted items that succeeded.
// An empty run reports 100.
func (o *Outcome) SuccessRate() float64 {
	if o.Attempted == 0 {
		return 100
	}
	return float64(o.Succeeded) / float64(o.Attempted) * 100
}

// ExitCode returns ExitPartialFailure when any item failed, ExitOK otherwise.
func (o *Outcome) ExitCode() int {
	if o.Failed > 0 {
		return ExitPartialFailure
	}
	return ExitOK
}

// JSON returns the outcome as indented JSON.
func (o *Outcome) JSON() string {
	jsonBytes, _ := json.MarshalIndent(o, "", "  ")
	return string(jsonBytes)
}
