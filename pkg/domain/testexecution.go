package domain

import (
	"fmt"
	"time"
)

type TestStatus string

const (
	TestReady   TestStatus = "READY_FOR_TESTING"
	TestRunning TestStatus = "RUNNING"
	TestPassed  TestStatus = "PASSED"
	TestFailed  TestStatus = "FAILED"
	TestIgnored TestStatus = "IGNORED"

	// save-cli could not evaluate the test.
	TestError TestStatus = "TEST_ERROR"
)

func (ts TestStatus) String() string {
	return string(ts)
}

func AsTestStatus(status string) (TestStatus, error) {
	switch status {
	case string(TestReady):
		return TestReady, nil
	case string(TestRunning):
		return TestRunning, nil
	case string(TestPassed):
		return TestPassed, nil
	case string(TestFailed):
		return TestFailed, nil
	case string(TestIgnored):
		return TestIgnored, nil
	case string(TestError):
		return TestError, nil
	default:
		return "", fmt.Errorf("'%s' is not TestStatus", status)
	}
}

// HasResult reports whether the status is a result reported by an agent.
func (ts TestStatus) HasResult() bool {
	switch ts {
	case TestPassed, TestFailed, TestIgnored, TestError:
		return true
	default:
		return false
	}
}

type TestExecution struct {
	Id          int64
	ExecutionId int64
	FilePath    string
	TestSuite   string
	Status      TestStatus

	// ContainerId of the agent running this test. Empty unless the test has been dispatched.
	AgentId string

	StartTime *time.Time
	EndTime   *time.Time

	MissingWarnings int
	MatchedWarnings int
}

// TestResult is a result of a test reported by an agent.
type TestResult struct {
	FilePath        string
	Status          TestStatus
	StartTime       time.Time
	EndTime         time.Time
	MissingWarnings int
	MatchedWarnings int
}

type TestFindQuery struct {
	ExecutionId int64

	// match any if empty
	Status []TestStatus

	// match any if empty
	AgentId string
}
