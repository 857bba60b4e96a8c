package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/queue"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running rules-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	CasesDir          string

	// Seed loads a world file before a suite runs. Suites that name a world
	// fail when Seed is nil.
	Seed func(ctx context.Context, worldPath string) error
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
		CasesDir:          "cases",
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	if suite.World != "" {
		if r.Seed == nil {
			result.Error = fmt.Errorf("suite %s needs world %s but the runner cannot seed", suite.Name, suite.World)
			return result, result.Error
		}
		if err := r.Seed(ctx, filepath.Join(r.CasesDir, suite.World)); err != nil {
			result.Error = fmt.Errorf("failed to seed world: %w", err)
			result.Duration = time.Since(start)
			return result, result.Error
		}
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.executeStep(ctx, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep performs the actual step execution
func (r *Runner) executeStep(ctx context.Context, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var err error
	switch {
	case step.Check != nil && step.Action == nil:
		result.ResponseText, err = r.runCheck(ctx, step)
	case step.Action != nil && step.Check == nil:
		result.ResponseText, err = r.runAction(ctx, step)
	default:
		err = fmt.Errorf("step must have exactly one of check or action")
	}

	result.Error = err
	result.Success = err == nil
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) runCheck(ctx context.Context, step TestStep) (string, error) {
	exp := step.Expectations
	status, body, err := PostJSON(ctx, r.Client, r.BaseURL+"/v1/checks", step.Check)
	if err != nil {
		return "", err
	}
	if err := expectStatus(exp, status, http.StatusOK, body); err != nil {
		return string(body), err
	}
	if status != http.StatusOK {
		return string(body), nil
	}

	var res check.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return string(body), fmt.Errorf("failed to decode check result: %w", err)
	}
	return res.Outcome.Description, checkExpectations(exp, &res)
}

func (r *Runner) runAction(ctx context.Context, step TestStep) (string, error) {
	exp := step.Expectations
	a := step.Action

	var before *encounter.Encounter
	if a.TenantID != "" {
		enc, err := GetEncounter(ctx, r.Client, r.BaseURL, a.TenantID, a.EncounterID)
		if err != nil {
			return "", fmt.Errorf("failed to get encounter before action: %w", err)
		}
		before = enc
	}

	var action *combat.ActionResult
	if a.Async {
		requestID, err := PostActionAsync(ctx, r.Client, r.BaseURL, a.EncounterID, a.ActionRequest)
		if err != nil {
			return "", err
		}
		res, err := PollForResult(ctx, r.Client, r.BaseURL, requestID)
		if err != nil {
			return "", err
		}
		if exp.ResultStatus != nil && res.Status != *exp.ResultStatus {
			return res.Error, fmt.Errorf("expected result status %s, got %s (%s)", *exp.ResultStatus, res.Status, res.Error)
		}
		if res.Status == queue.ResultStatusFailed {
			if exp.ErrorContains == "" || !strings.Contains(res.Error, exp.ErrorContains) {
				return res.Error, fmt.Errorf("queued action failed: %s", res.Error)
			}
			return res.Error, nil
		}
		action = res.Action
	} else {
		url := fmt.Sprintf("%s/v1/encounters/%s/actions", r.BaseURL, a.EncounterID)
		status, body, err := PostJSON(ctx, r.Client, url, a.ActionRequest)
		if err != nil {
			return "", err
		}
		if err := expectStatus(exp, status, http.StatusOK, body); err != nil {
			return string(body), err
		}
		if status != http.StatusOK {
			return string(body), nil
		}
		action = &combat.ActionResult{}
		if err := json.Unmarshal(body, action); err != nil {
			return string(body), fmt.Errorf("failed to decode action result: %w", err)
		}
	}
	if action == nil {
		return "", fmt.Errorf("completed result carries no action")
	}

	after, err := GetEncounter(ctx, r.Client, r.BaseURL, a.TenantID, a.EncounterID)
	if err != nil {
		return action.Description, fmt.Errorf("failed to get encounter after action: %w", err)
	}
	return action.Description, actionExpectations(exp, action, before, after)
}

func expectStatus(exp Expectations, got, def int, body []byte) error {
	want := def
	if exp.Status != nil {
		want = *exp.Status
	}
	if got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, string(body))
	}
	if exp.ErrorContains != "" && !strings.Contains(string(body), exp.ErrorContains) {
		return fmt.Errorf("expected response to contain '%s', got %s", exp.ErrorContains, string(body))
	}
	return nil
}

// checkExpectations validates a check result. The roll arithmetic is checked on
// every result regardless of expectations.
func checkExpectations(exp Expectations, res *check.Result) error {
	if res.FinalValue != res.RollUsed+res.TotalModifier {
		return fmt.Errorf("final value %d is not roll %d + modifier %d", res.FinalValue, res.RollUsed, res.TotalModifier)
	}
	sum := 0
	sources := make([]string, 0, len(res.ModifierDetails))
	for _, d := range res.ModifierDetails {
		sum += d.Value
		sources = append(sources, d.Source)
	}
	if sum != res.TotalModifier {
		return fmt.Errorf("modifier details sum to %d, total_modifier is %d", sum, res.TotalModifier)
	}

	if len(exp.Outcomes) > 0 && !slices.Contains(exp.Outcomes, res.Outcome.Status) {
		return fmt.Errorf("expected outcome in %v, got %s", exp.Outcomes, res.Outcome.Status)
	}
	for _, want := range exp.ModifierSources {
		if !slices.Contains(sources, want) {
			return fmt.Errorf("expected modifier source %s, got %v", want, sources)
		}
	}
	if exp.TotalModifier != nil && res.TotalModifier != *exp.TotalModifier {
		return fmt.Errorf("expected total modifier %d, got %d", *exp.TotalModifier, res.TotalModifier)
	}
	return nil
}

// actionExpectations validates an action result against the encounter before
// and after it. Damage must always match the target's HP change.
func actionExpectations(exp Expectations, res *combat.ActionResult, before, after *encounter.Encounter) error {
	if exp.Success != nil && res.Success != *exp.Success {
		return fmt.Errorf("expected success %t, got %t: %s", *exp.Success, res.Success, res.Description)
	}
	lower := strings.ToLower(res.Description)
	for _, want := range exp.DescriptionContains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			return fmt.Errorf("expected description to contain '%s', got '%s'", want, res.Description)
		}
	}
	if before == nil || after == nil {
		if exp.CombatLogGrowth != nil || exp.EncounterStatus != nil {
			return fmt.Errorf("encounter not found")
		}
		return nil
	}

	if exp.CombatLogGrowth != nil {
		if growth := len(after.CombatLog) - len(before.CombatLog); growth != *exp.CombatLogGrowth {
			return fmt.Errorf("expected combat log to grow by %d, grew by %d", *exp.CombatLogGrowth, growth)
		}
	}
	if exp.EncounterStatus != nil && after.Status != *exp.EncounterStatus {
		return fmt.Errorf("expected encounter status %s, got %s", *exp.EncounterStatus, after.Status)
	}

	if res.DamageDealt != nil && res.TargetID != "" {
		target := encounter.Participant{ID: res.TargetID, Type: res.TargetType}
		pb, pa := before.Participant(target.Ref()), after.Participant(target.Ref())
		if pb == nil || pa == nil {
			return fmt.Errorf("target %s missing from encounter", target.Ref())
		}
		want := max(pb.CurrentHP-*res.DamageDealt, 0)
		if pa.CurrentHP != want {
			return fmt.Errorf("target hp went %d -> %d after %d damage", pb.CurrentHP, pa.CurrentHP, *res.DamageDealt)
		}
	}
	return nil
}
