package db

import (
	"context"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
)

type ExecutionInterface interface {
	// register a new Execution as PENDING, with its tests as READY_FOR_TESTING.
	//
	// Args
	//
	// - context.Context
	//
	// - domain.ExecutionSpec: the execution. Id is given by the backend.
	//
	// - []domain.TestSource: tests of the execution. Duplicated file paths are merged.
	//
	// Returns
	//
	// - *domain.Execution: the registered execution.
	//
	// - error: ErrConflict when an execution with the same id exists.
	New(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error)

	// get an execution.
	//
	// Returns
	//
	// - error: ErrMissing when not found.
	Get(ctx context.Context, executionId int64) (*domain.Execution, error)

	// update execution status.
	//
	// Returns
	//
	// - error: ErrMissing (not found), ErrInvalidTransition (the change is not
	// allowed by ExecutionStatus.CanChangeTo).
	SetStatus(ctx context.Context, executionId int64, newStatus domain.ExecutionStatus) error

	// find tests matching the query, ordered by id.
	FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error)

	// count tests of the execution per status. Statuses without tests are omitted.
	CountTests(ctx context.Context, executionId int64) (map[domain.TestStatus]int, error)

	// store results reported by an agent.
	//
	// Each result is matched with a test by file path.
	// All or nothing: when any result fails, nothing is stored.
	//
	// Args
	//
	// - context.Context
	//
	// - int64: execution id which the reporter is authorized for.
	//
	// - string: container id of the agent reporting.
	//
	// - []domain.TestResult: results. Status should satisfy HasResult.
	//
	// Returns
	//
	// - int: the number of stored results.
	//
	// - error: ErrMissing (agent is not found), ErrConflict (the agent belongs to
	// another execution, or a result is for a test which is not RUNNING on the agent).
	SaveResults(ctx context.Context, executionId int64, agentId string, results []domain.TestResult) (int, error)

	// finish an execution when all of its agents are in final states.
	//
	// While fewer agents than Replicas are registered, the rest are awaited
	// unless the execution has been RUNNING since before startedBefore.
	//
	// Tests left RUNNING are put back to READY_FOR_TESTING first.
	// Then, the execution becomes FINISHED when no tests are READY_FOR_TESTING,
	// or ERROR otherwise.
	//
	// Returns
	//
	// - domain.ExecutionStatus: status of the execution after this call.
	//
	// - bool: true if the execution is finished by this call.
	//
	// - error: ErrMissing when the execution is not found.
	Finalize(ctx context.Context, executionId int64, startedBefore time.Time) (domain.ExecutionStatus, bool, error)

	// find RUNNING executions which became RUNNING before the time and have
	// fewer agents registered than Replicas. Ids are in ascending order.
	FindAwaitingAgents(ctx context.Context, startedBefore time.Time) ([]int64, error)

	// find FINISHED or ERROR executions finished before the time, whose
	// containers are not confirmed to be removed. Ids are in ascending order.
	FindUncleaned(ctx context.Context, finishedBefore time.Time) ([]int64, error)

	// record that containers of the execution are removed.
	//
	// Returns
	//
	// - error: ErrMissing when the execution is not found.
	MarkCleanedUp(ctx context.Context, executionId int64) error
}
