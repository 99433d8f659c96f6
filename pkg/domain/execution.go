package domain

import (
	"fmt"
	"time"
)

type ExecutionStatus string

const (
	// Execution is accepted, but agents are not started yet.
	ExecutionPending ExecutionStatus = "PENDING"

	// Agents for the Execution have been requested.
	ExecutionRunning ExecutionStatus = "RUNNING"

	// All tests of the Execution got results.
	ExecutionFinished ExecutionStatus = "FINISHED"

	// Execution stopped with tests left without results, or agents could not be started.
	ExecutionError ExecutionStatus = "ERROR"
)

func (es ExecutionStatus) String() string {
	return string(es)
}

func AsExecutionStatus(status string) (ExecutionStatus, error) {
	switch status {
	case string(ExecutionPending):
		return ExecutionPending, nil
	case string(ExecutionRunning):
		return ExecutionRunning, nil
	case string(ExecutionFinished):
		return ExecutionFinished, nil
	case string(ExecutionError):
		return ExecutionError, nil
	default:
		return "", fmt.Errorf("'%s' is not ExecutionStatus", status)
	}
}

// Terminal reports whether the status is final.
func (es ExecutionStatus) Terminal() bool {
	switch es {
	case ExecutionFinished, ExecutionError:
		return true
	default:
		return false
	}
}

// CanChangeTo reports whether a transition from es to next is allowed.
//
// PENDING -> RUNNING -> FINISHED | ERROR, and PENDING -> ERROR.
func (es ExecutionStatus) CanChangeTo(next ExecutionStatus) bool {
	switch es {
	case ExecutionPending:
		return next == ExecutionRunning || next == ExecutionError
	case ExecutionRunning:
		return next == ExecutionFinished || next == ExecutionError
	default:
		return false
	}
}

const DefaultBatchSize = 20

// ExecutionSpec is what the backend asks the orchestrator to run.
type ExecutionSpec struct {
	Id         int64
	Project    string
	Sdk        string
	TestSuites []string

	// extra arguments passed to save-cli
	Command string

	// number of tests given to an agent at once
	BatchSize int

	// number of agents to be started
	Replicas int
}

type Execution struct {
	ExecutionSpec
	Status    ExecutionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Execution) Equal(o Execution) bool {
	return e.Id == o.Id &&
		e.Project == o.Project &&
		e.Sdk == o.Sdk &&
		e.Command == o.Command &&
		e.BatchSize == o.BatchSize &&
		e.Replicas == o.Replicas &&
		e.Status == o.Status &&
		len(e.TestSuites) == len(o.TestSuites) &&
		func() bool {
			for i := range e.TestSuites {
				if e.TestSuites[i] != o.TestSuites[i] {
					return false
				}
			}
			return true
		}() &&
		e.CreatedAt.Equal(o.CreatedAt) &&
		e.UpdatedAt.Equal(o.UpdatedAt)
}

// TestSource is a test file to be registered with an Execution.
type TestSource struct {
	FilePath  string
	TestSuite string
}
