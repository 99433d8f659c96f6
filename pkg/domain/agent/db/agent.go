package db

import (
	"context"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
)

type AgentInterface interface {
	// register agents of an execution as STARTING.
	//
	// Agents already registered are left as they are.
	//
	// Returns
	//
	// - error: ErrMissing when the execution is not found.
	Register(ctx context.Context, executionId int64, agents []domain.AgentInfo, at time.Time) error

	// record a heartbeat.
	//
	// The agent is registered if it is unknown.
	// Once an agent is in a final state, its state is kept as it is and only
	// LastHeartbeat is updated.
	//
	// Args
	//
	// - context.Context
	//
	// - domain.Agent: the agent as reported.
	//
	// Returns
	//
	// - *domain.Agent: the agent as recorded.
	//
	// - error: ErrMissing when the execution is not found.
	Heartbeat(ctx context.Context, agent domain.Agent) (*domain.Agent, error)

	// get an agent.
	//
	// Returns
	//
	// - error: ErrMissing when not found.
	Get(ctx context.Context, containerId string) (*domain.Agent, error)

	// list agents of an execution, ordered by container id.
	ListByExecution(ctx context.Context, executionId int64) ([]domain.Agent, error)

	// update the state of an agent.
	//
	// Returns
	//
	// - error: ErrMissing (not found), ErrInvalidTransition (the agent is in a
	// final state already and newState is another one).
	SetState(ctx context.Context, containerId string, newState domain.AgentState) error

	// find agents in a live state whose last heartbeat is before the time.
	FindStale(ctx context.Context, before time.Time) ([]domain.Agent, error)

	// dispatch tests to an agent.
	//
	// Up to size tests in READY_FOR_TESTING are changed to RUNNING on the agent,
	// and the agent becomes BUSY.
	// Tests locked by other transactions are skipped, so the same test is
	// never dispatched to two agents.
	//
	// Returns
	//
	// - []domain.TestExecution: dispatched tests. Empty if nothing to do;
	// the agent state is not changed then.
	//
	// - error: ErrMissing (agent is not found), ErrInvalidTransition (agent is
	// in a final state).
	AssignBatch(ctx context.Context, containerId string, size int) ([]domain.TestExecution, error)

	// put an agent into a final state.
	//
	// Tests RUNNING on the agent are put back to READY_FOR_TESTING.
	//
	// Returns
	//
	// - int: the number of tests put back.
	//
	// - error: ErrMissing (agent is not found), ErrInvalidTransition (newState
	// is not final, or the agent is in another final state already).
	Retire(ctx context.Context, containerId string, newState domain.AgentState) (int, error)
}
