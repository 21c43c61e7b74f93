package types

import "time"

// Result is the terminal state of one move attempt cycle.
type Result int

const (
	// Success means the file now lives at DestinationPath.
	Success Result = iota
	// Skipped means the file matched an ignore rule; nothing was touched.
	Skipped
	// Failed means every retry attempt was used up.
	Failed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// FileEvent is a newly observed file waiting to be organized.
type FileEvent struct {
	Path       string    `json:"path"`
	DetectedAt time.Time `json:"detected_at"`
}

// MoveOutcome holds the outcome of an organization attempt for a single file
type MoveOutcome struct {
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path,omitempty"`
	Category        string `json:"category,omitempty"`
	Attempts        int    `json:"attempts"`
	Result          Result `json:"result"`
	Err             error  `json:"-"`
}

// Moved reports whether the file was relocated.
func (o MoveOutcome) Moved() bool {
	return o.Result == Success
}
