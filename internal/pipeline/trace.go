package pipeline

import (
	"encoding/json"
	"time"
)

// Trace is the record of one pipeline run.
type Trace struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Schema         string    `json:"schema"`
	SQL            string    `json:"sql"`
	Result         string    `json:"result"`
	ExecutionError string    `json:"execution_error,omitempty"`
	Answer         *Answer   `json:"answer"`
	Outcome        string    `json:"outcome"`
	Timings        Timings   `json:"timings"`
	CreatedAt      time.Time `json:"created_at"`
}

// Timings holds per-stage durations.
type Timings struct {
	Describe   time.Duration
	Synthesize time.Duration
	Execute    time.Duration
	Compose    time.Duration
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Describe + t.Synthesize + t.Execute + t.Compose
}

type timingsJSON struct {
	DescribeMS   int64 `json:"describe_ms"`
	SynthesizeMS int64 `json:"synthesize_ms"`
	ExecuteMS    int64 `json:"execute_ms"`
	ComposeMS    int64 `json:"compose_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// MarshalJSON writes durations as whole milliseconds.
func (t Timings) MarshalJSON() ([]byte, error) {
	return json.Marshal(timingsJSON{
		DescribeMS:   t.Describe.Milliseconds(),
		SynthesizeMS: t.Synthesize.Milliseconds(),
		ExecuteMS:    t.Execute.Milliseconds(),
		ComposeMS:    t.Compose.Milliseconds(),
		TotalMS:      t.Total().Milliseconds(),
	})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (t *Timings) UnmarshalJSON(b []byte) error {
	var v timingsJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t.Describe = time.Duration(v.DescribeMS) * time.Millisecond
	t.Synthesize = time.Duration(v.SynthesizeMS) * time.Millisecond
	t.Execute = time.Duration(v.ExecuteMS) * time.Millisecond
	t.Compose = time.Duration(v.ComposeMS) * time.Millisecond
	return nil
}
