//go:build integration
// +build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/rules-engine/integration/runner"
	"github.com/jwebster45206/rules-engine/internal/events"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/internal/lock"
	"github.com/jwebster45206/rules-engine/internal/middleware"
	"github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/internal/worker"
	"github.com/jwebster45206/rules-engine/internal/world"
	"github.com/redis/go-redis/v9"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")

// stack is what the suites run against: either an external API named by
// API_BASE_URL, or an in-process API and worker on miniredis.
var stack struct {
	baseURL string
	seed    func(ctx context.Context, worldPath string) error
}

func TestMain(m *testing.M) {
	flag.Parse()

	stack.baseURL = os.Getenv("API_BASE_URL")
	var shutdown func()
	if stack.baseURL == "" {
		var err error
		shutdown, err = startInProcess()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start in-process stack: %v\n", err)
			os.Exit(1)
		}
	} else if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		client, err := storage.NewRedisClient(redisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid REDIS_URL: %v\n", err)
			os.Exit(1)
		}
		store := storage.NewRedisStorage(client, discardLogger())
		stack.seed = seedInto(store)
		shutdown = func() { _ = store.Close() }
	}

	fmt.Printf("Running Rules Engine Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", stack.baseURL)

	code := m.Run()
	if shutdown != nil {
		shutdown()
	}
	os.Exit(code)
}

// startInProcess wires the API and one worker exactly as the binaries do.
func startInProcess() (func(), error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := discardLogger()

	store := storage.NewRedisStorage(client, log)
	broadcaster := events.NewBroadcaster(client, log)
	actionQueue := queue.NewActionQueue(client, time.Hour, log)
	locker := lock.NewEncounterLock(client, 5*time.Second, log)

	api := service.New(store, service.NewRoller(42), events.NewSink(client, log), locker, "api", log)
	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, actionQueue, log))
	mux.Handle("/v1/checks", handlers.NewCheckHandler(api.Checks, log))
	mux.Handle("/v1/encounters/", handlers.NewEncounterHandler(store, api.Combat, actionQueue, broadcaster, log))
	mux.Handle("/v1/actions/", handlers.NewResultHandler(actionQueue, log))
	mux.Handle("/v1/events/", handlers.NewEventsHandler(client, log))
	server := httptest.NewServer(middleware.LoggerWith(log, mux))

	workerSvc := service.New(store, service.NewRoller(7), events.NewSink(client, log), locker, "worker-it", log)
	w := worker.New(actionQueue, workerSvc.Combat, broadcaster, 5, log, "worker-it")
	go func() {
		_ = w.Start()
	}()

	stack.baseURL = server.URL
	stack.seed = seedInto(store)
	return func() {
		w.Stop()
		server.Close()
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedInto(store storage.Storage) func(ctx context.Context, worldPath string) error {
	return func(ctx context.Context, worldPath string) error {
		w, err := world.LoadFile(worldPath)
		if err != nil {
			return err
		}
		if errs := w.Validate(); len(errs) > 0 {
			return fmt.Errorf("world %s is invalid:\n%s", worldPath, strings.Join(errs, "\n"))
		}
		return w.Apply(ctx, store)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRunner() *runner.Runner {
	r := runner.NewRunner(stack.baseURL)
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 30)) * time.Second
	r.ErrorHandlingMode = runner.ErrorHandlingMode(*errFlag)
	r.Seed = stack.seed
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	return r
}

func TestIntegrationSuites(t *testing.T) {
	if *caseFlag != "" {
		t.Skip("-case given; see TestSingleSuite")
	}

	testFiles, err := discoverTestFiles("cases")
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(testFiles) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	var jobs []runner.TestJob
	for _, file := range testFiles {
		expandedJobs, err := runner.LoadTestSuiteWithExpansion(file, "cases")
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expandedJobs...)
	}
	runJobs(t, jobs)
}

// TestSingleSuite allows running individual test suites for debugging
// Supports multiple cases comma-separated: -case "case1,case2,case3"
func TestSingleSuite(t *testing.T) {
	if *caseFlag == "" {
		t.Skip("Use -case flag to specify a test case")
	}

	var jobs []runner.TestJob
	for _, name := range strings.Split(*caseFlag, ",") {
		name = strings.TrimSpace(name)
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		expandedJobs, err := runner.LoadTestSuiteWithExpansion(filepath.Join("cases", name), "cases")
		if err != nil {
			t.Fatalf("Failed to load test case %s: %v", name, err)
		}
		jobs = append(jobs, expandedJobs...)
	}
	runJobs(t, jobs)
}

func runJobs(t *testing.T, jobs []runner.TestJob) {
	t.Helper()
	if len(jobs) == 0 {
		t.Fatal("No valid test suites loaded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	testRunner := newRunner()
	t.Logf("Running %d test suites sequentially...", len(jobs))

	var failed, passed []string
	for i, job := range jobs {
		t.Logf("[%d/%d] Starting test suite: %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))

		result, err := testRunner.RunSuite(ctx, job.Suite)
		if err != nil && result.Error == nil {
			result.Error = err
		}
		result.Job = job

		if result.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", job.Name, result.Error))
			t.Errorf("[%d/%d] FAILED: Test suite '%s' failed: %v", i+1, len(jobs), job.Name, result.Error)
			continue
		}

		passed = append(passed, job.Name)
		t.Logf("[%d/%d] PASSED: Test suite '%s' completed in %v", i+1, len(jobs), job.Name, result.Duration)
		for _, stepResult := range result.Results {
			t.Logf("   ✓ %s (%v) %s", stepResult.StepName, stepResult.Duration, stepResult.ResponseText)
		}
	}

	t.Logf("\nIntegration Test Summary:")
	t.Logf("   Passed: %d", len(passed))
	t.Logf("   Failed: %d", len(failed))

	if len(failed) > 0 {
		t.Logf("\nFailed tests:")
		for _, failure := range failed {
			t.Logf("   - %s", failure)
		}
		t.Fatalf("Integration tests failed")
	}
}

// Helper functions

func discoverTestFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func getIntEnv(name string, defaultValue int) int {
	str := os.Getenv(name)
	if str == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultValue
	}

	return val
}
