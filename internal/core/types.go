package core

import (
	"fmt"
	"time"
)

// FieldType is the declared type of an importable record field.
type FieldType int

const (
	FieldUnsupported FieldType = iota
	FieldString
	FieldInt8
	FieldInt16
	FieldInt32
	FieldInt64
	FieldBool
	FieldFloat32
	FieldFloat64
	FieldEnum
)

var fieldTypeNames = map[FieldType]string{
	FieldString:  "string",
	FieldInt8:    "int8",
	FieldInt16:   "int16",
	FieldInt32:   "int32",
	FieldInt64:   "int64",
	FieldBool:    "bool",
	FieldFloat32: "float32",
	FieldFloat64: "float64",
	FieldEnum:    "enum",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Supported reports whether the coercer can convert text into t.
func (t FieldType) Supported() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// ContainerKind is the shape of a destination field on a content object.
type ContainerKind int

const (
	KindSingle ContainerKind = iota + 1
	KindList
	KindArray
)

func (k ContainerKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindList:
		return "list"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("ContainerKind(%d)", int(k))
	}
}

// RunState is the lifecycle state of one import run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// RunPhase indicates the current step inside a run.
type RunPhase string

const (
	PhaseStarting   RunPhase = "starting"
	PhaseFetching   RunPhase = "fetching"
	PhaseParsing    RunPhase = "parsing"
	PhasePopulating RunPhase = "populating"
	PhaseComplete   RunPhase = "complete"
	PhaseFailed     RunPhase = "failed"
	PhaseCancelled  RunPhase = "cancelled"
)

// RunProgress is a snapshot of a run's observable state.
type RunProgress struct {
	RunID     string   `json:"runId"`
	Container string   `json:"container,omitempty"`
	State     RunState `json:"state"`
	Phase     RunPhase `json:"phase"`
	Status    string   `json:"status"`
	Progress  float64  `json:"progress"` // cumulative, 0..1
	Page      string   `json:"page,omitempty"`
	PageIndex int      `json:"pageIndex"`
	PageCount int      `json:"pageCount"`
	Error     string   `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p RunProgress) Percent() int {
	return int(p.Progress*100 + 0.5)
}

// Warning records a non-fatal problem found while reading a page.
type Warning struct {
	Page    string `json:"page"`
	Line    int    `json:"line"` // 1-based; the header is line 1
	Column  string `json:"column"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// PageResult summarizes one imported page.
type PageResult struct {
	Field   string        `json:"field"`
	Page    string        `json:"page"`
	Kind    ContainerKind `json:"kind"`
	Records int           `json:"records"`
	Skipped int           `json:"skipped"` // rows dropped for an empty identifier
	Bytes   int64         `json:"bytes"`
}

// RunResult contains the final result of an import run.
type RunResult struct {
	RunID      string        `json:"runId"`
	Container  string        `json:"container,omitempty"`
	DocumentID string        `json:"documentId"`
	State      RunState      `json:"state"`
	Error      string        `json:"error,omitempty"` // non-empty if State is StateFailed
	Pages      []PageResult  `json:"pages"`
	Warnings   []Warning     `json:"warnings"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
}

// Records returns the number of records written across all pages.
func (r RunResult) Records() int {
	n := 0
	for _, p := range r.Pages {
		n += p.Records
	}
	return n
}

// PageNames returns the imported page names in order.
func (r RunResult) PageNames() []string {
	names := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		names[i] = p.Page
	}
	return names
}

// ProgressCallback is called with a snapshot after every state change.
type ProgressCallback func(RunProgress)
