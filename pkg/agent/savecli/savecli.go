// Package savecli runs save-cli for a batch of tests and reads its json report.
package savecli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/saveourtool/save-cloud/pkg/api/types/tests"
	"github.com/saveourtool/save-cloud/pkg/domain"
)

// ErrNoReport is returned when save-cli finished without writing its report.
var ErrNoReport = errors.New("save-cli did not write a report")

// ReportFile is the name of the report save-cli writes into --report-dir.
const ReportFile = "save.out.json"

// LogFile is the name of the file capturing stdout and stderr of save-cli.
const LogFile = "save.log"

type CLI interface {
	// Run runs save-cli for testFiles.
	//
	// # Args
	//
	// - ctx: canceling it kills save-cli.
	//
	// - cliArgs: extra arguments for this batch.
	//
	// - testFiles: paths of test files, relative to the test suites root.
	//
	// # Returns
	//
	// - []tests.Result: one result for each of testFiles.
	//
	// - error: ErrNoReport if save-cli exited without report, or errors on starting it.
	// A non-zero exit status is not an error as long as the report is written.
	Run(ctx context.Context, cliArgs []string, testFiles []string) ([]tests.Result, error)
}

type saveCLI struct {
	command []string
	workDir string
	args    []string
	clock   func() time.Time
}

type Option func(*saveCLI)

// WithArgs sets arguments passed to save-cli for every batch.
func WithArgs(args ...string) Option {
	return func(s *saveCLI) {
		s.args = args
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *saveCLI) {
		s.clock = clock
	}
}

// New returns CLI running command in workDir.
//
// command is an executable and its leading arguments, like ["save"] or ["java", "-jar", "save.jar"].
// Reports and logs are written in workDir.
func New(command []string, workDir string, options ...Option) (CLI, error) {
	if len(command) == 0 {
		return nil, errors.New("save-cli command is empty")
	}
	s := &saveCLI{command: command, workDir: workDir, clock: time.Now}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

func (s *saveCLI) Run(ctx context.Context, cliArgs []string, testFiles []string) ([]tests.Result, error) {
	if err := os.MkdirAll(s.workDir, os.FileMode(0o755)); err != nil {
		return nil, err
	}
	reportDir, err := os.MkdirTemp(s.workDir, "report-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(reportDir)

	// appended, so logs of earlier batches are kept.
	logfile, err := os.OpenFile(
		filepath.Join(s.workDir, LogFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, os.FileMode(0o644),
	)
	if err != nil {
		return nil, err
	}
	defer logfile.Close()

	args := append([]string{}, s.command[1:]...)
	args = append(args, s.args...)
	args = append(args, cliArgs...)
	args = append(args, "--report-type", "json", "--result-output", "FILE", "--report-dir", reportDir)
	args = append(args, testFiles...)

	cmd := exec.CommandContext(ctx, s.command[0], args...)
	cmd.Dir = s.workDir
	cmd.Stdout = logfile
	cmd.Stderr = logfile

	start := s.clock()
	runErr := cmd.Run()
	end := s.clock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(filepath.Join(reportDir, ReportFile))
	if errors.Is(err, os.ErrNotExist) {
		if runErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoReport, runErr)
		}
		return nil, ErrNoReport
	} else if err != nil {
		return nil, err
	}

	reports := []Report{}
	if err := json.Unmarshal(b, &reports); err != nil {
		return nil, fmt.Errorf("%w: broken report: %w", ErrNoReport, err)
	}
	return Results(reports, testFiles, start, end), nil
}

// Report is a report of one test suite, in save-cli json format.
type Report struct {
	TestSuite        string            `json:"testSuite"`
	PluginExecutions []PluginExecution `json:"pluginExecutions"`
}

type PluginExecution struct {
	Plugin      string       `json:"plugin"`
	TestResults []TestResult `json:"testResults"`
}

type TestResult struct {
	Resources struct {
		Test string `json:"test"`
	} `json:"resources"`
	Status struct {
		// Pass, Fail, Ignored or Crash
		Type string `json:"type"`
	} `json:"status"`
	DebugInfo *DebugInfo `json:"debugInfo,omitempty"`
}

type DebugInfo struct {
	DurationMillis *int64         `json:"durationMillis,omitempty"`
	CountWarnings  *CountWarnings `json:"countWarnings,omitempty"`
}

type CountWarnings struct {
	Unmatched  int `json:"unmatched"`
	Matched    int `json:"matched"`
	Expected   int `json:"expected"`
	Unexpected int `json:"unexpected"`
}

// AsTestStatus maps a save-cli status type to TestStatus.
func AsTestStatus(typ string) domain.TestStatus {
	switch typ {
	case "Pass":
		return domain.TestPassed
	case "Fail":
		return domain.TestFailed
	case "Ignored":
		return domain.TestIgnored
	default:
		return domain.TestError
	}
}

// severity orders statuses. A test checked by many plugins gets its most severe status.
func severity(s domain.TestStatus) int {
	switch s {
	case domain.TestIgnored:
		return 0
	case domain.TestPassed:
		return 1
	case domain.TestFailed:
		return 2
	default:
		return 3
	}
}

// Results builds a result for each of testFiles from reports.
//
// Tests missing in reports are TEST_ERROR.
// Start time of each test is batchStart. End time is batchStart + duration, or batchEnd if unknown.
func Results(reports []Report, testFiles []string, batchStart, batchEnd time.Time) []tests.Result {
	found := map[string]tests.Result{}
	for _, rep := range reports {
		for _, pe := range rep.PluginExecutions {
			for _, tr := range pe.TestResults {
				r := tests.Result{
					FilePath:  tr.Resources.Test,
					Status:    AsTestStatus(tr.Status.Type).String(),
					StartTime: batchStart,
					EndTime:   batchEnd,
				}
				if d := tr.DebugInfo; d != nil {
					if d.DurationMillis != nil {
						r.EndTime = batchStart.Add(time.Duration(*d.DurationMillis) * time.Millisecond)
					}
					if w := d.CountWarnings; w != nil {
						r.MissingWarnings = w.Unmatched
						r.MatchedWarnings = w.Matched
					}
				}

				prev, ok := found[r.FilePath]
				if !ok {
					found[r.FilePath] = r
					continue
				}
				if severity(domain.TestStatus(prev.Status)) < severity(domain.TestStatus(r.Status)) {
					prev.Status = r.Status
				}
				if prev.EndTime.Before(r.EndTime) {
					prev.EndTime = r.EndTime
				}
				prev.MissingWarnings += r.MissingWarnings
				prev.MatchedWarnings += r.MatchedWarnings
				found[r.FilePath] = prev
			}
		}
	}

	results := make([]tests.Result, 0, len(testFiles))
	for _, f := range testFiles {
		r, ok := found[f]
		if !ok {
			r = tests.Result{
				FilePath:  f,
				Status:    domain.TestError.String(),
				StartTime: batchStart,
				EndTime:   batchEnd,
			}
		}
		results = append(results, r)
	}
	return results
}
