package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/queue"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	World string     `json:"world,omitempty"` // world file seeded before the steps, relative to the cases dir
	Steps []TestStep `json:"steps,omitempty"`
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one API call and its expected outcome. Exactly one of Check
// and Action is set.
type TestStep struct {
	Name         string                 `json:"name,omitempty"`
	Check        *handlers.CheckRequest `json:"check,omitempty"`
	Action       *ActionStep            `json:"action,omitempty"`
	Expectations Expectations           `json:"expect"`
}

// ActionStep posts a combat action, synchronously or through the worker queue.
type ActionStep struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	Async       bool      `json:"async,omitempty"`
	handlers.ActionRequest
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// HTTP status of the call; defaults to 200 (202 for async actions).
	Status        *int   `json:"status,omitempty"`
	ErrorContains string `json:"error_contains,omitempty"`

	// Check results
	Outcomes        []check.Status `json:"outcome_in,omitempty"`
	ModifierSources []string       `json:"modifier_sources,omitempty"` // must all be present
	TotalModifier   *int           `json:"total_modifier,omitempty"`

	// Action results
	ResultStatus        *queue.ResultStatus `json:"result_status,omitempty"` // async only
	Success             *bool               `json:"success,omitempty"`
	DescriptionContains []string            `json:"description_contains,omitempty"`
	CombatLogGrowth     *int                `json:"combat_log_growth,omitempty"`
	EncounterStatus     *encounter.Status   `json:"encounter_status,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
}
