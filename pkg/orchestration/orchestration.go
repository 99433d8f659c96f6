// Package orchestration drives Executions: it starts agents, answers their
// heartbeats with test batches, and finishes Executions when agents are gone.
package orchestration

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saveourtool/save-cloud/pkg/domain"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db"
	"github.com/saveourtool/save-cloud/pkg/hook"
	"github.com/saveourtool/save-cloud/pkg/metrics"
	"github.com/saveourtool/save-cloud/pkg/runner"
	"github.com/saveourtool/save-cloud/pkg/token"
)

type Service interface {
	// InitializeAgents registers an Execution with its tests and starts agents for it.
	//
	// # Returns
	//
	// - *domain.Execution: the Execution, RUNNING.
	//
	// - error: ErrConflict (the Execution exists), hook.ErrHookFailed (a before-hook
	// rejected the Execution), or errors from the container runner.
	// On the latter two, the Execution is left as ERROR.
	InitializeAgents(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error)

	// Heartbeat records a heartbeat and decides what the agent should do next.
	//
	// # Returns
	//
	// - error: ErrMissing when the Execution is not found,
	// ErrConflict when the agent is known as an agent of another Execution.
	Heartbeat(ctx context.Context, hb domain.Heartbeat) (domain.HeartbeatReply, error)

	// StopAgents stops containers and waits them to stop.
	//
	// # Returns
	//
	// - bool: true if all containers are stopped in time.
	StopAgents(ctx context.Context, containerIds []string) (bool, error)

	// SaveTestStatuses stores results reported by an agent of the Execution.
	//
	// # Returns
	//
	// - int: the number of stored results.
	//
	// - error: ErrMissing (unknown agent), ErrConflict (the agent is of another
	// Execution, or a result is for a test not RUNNING on the agent).
	SaveTestStatuses(ctx context.Context, executionId int64, containerId string, results []domain.TestResult) (int, error)

	FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error)

	// Cleanup removes containers of the Execution.
	Cleanup(ctx context.Context, executionId int64) error

	Detail(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error)

	// InspectHeartbeats marks agents missing heartbeats as CRASHED.
	//
	// It also finishes Executions whose agents never showed up in StartupTimeout,
	// and removes containers of finished Executions left behind.
	//
	// # Returns
	//
	// - int: the number of agents marked as CRASHED.
	InspectHeartbeats(ctx context.Context, now time.Time) (int, error)
}

// Settings are parameters of Executions given by the operator.
type Settings struct {
	// base of agent containers. Env is extended for each Execution.
	Template runner.RunConfiguration

	// arguments of save-cli used in every Execution.
	CliArgs []string

	// URLs for agents.
	OrchestratorURL string
	BackendURL      string

	HeartbeatInterval time.Duration

	// agents not sending heartbeats for this duration are CRASHED.
	HeartbeatTimeout time.Duration

	// agents not registered in this duration after their Execution started
	// are given up on.
	StartupTimeout time.Duration

	// limit of hooks and container removal after an Execution finished.
	// 0 means no limit.
	CleanupTimeout time.Duration

	// polling of StopAgents
	StopInterval time.Duration
	StopTimeout  time.Duration
}

type orchestrator struct {
	db       kdb.Database
	runner   runner.ContainerRunner
	tokens   *token.Issuer
	settings Settings

	hooks   hook.Hooks
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
}

type Option func(*orchestrator)

func WithHooks(h hook.Hooks) Option {
	return func(o *orchestrator) {
		o.hooks = h
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestrator) {
		o.metrics = m
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *orchestrator) {
		o.logger = l
	}
}

// WithClock replaces the clock used for LastHeartbeat.
func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) {
		o.now = now
	}
}

func New(
	db kdb.Database,
	r runner.ContainerRunner,
	tokens *token.Issuer,
	settings Settings,
	options ...Option,
) Service {
	o := &orchestrator{
		db:       db,
		runner:   r,
		tokens:   tokens,
		settings: settings,
		hooks:    hook.Noop(),
		logger:   log.Default(),
		now:      time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New(prometheus.NewRegistry())
	}
	return o
}

func (o *orchestrator) cliArgs(e domain.Execution) []string {
	args := make([]string, 0, len(o.settings.CliArgs))
	args = append(args, o.settings.CliArgs...)
	return append(args, strings.Fields(e.Command)...)
}

func (o *orchestrator) Detail(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
	e, err := o.db.Execution().Get(ctx, executionId)
	if err != nil {
		return nil, err
	}
	agents, err := o.db.Agent().ListByExecution(ctx, executionId)
	if err != nil {
		return nil, err
	}
	counts, err := o.db.Execution().CountTests(ctx, executionId)
	if err != nil {
		return nil, err
	}
	return &domain.ExecutionDetail{Execution: *e, Agents: agents, Tests: counts}, nil
}

func (o *orchestrator) FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error) {
	return o.db.Execution().FindTests(ctx, query)
}

// retire puts the agent into a final state.
//
// When the agent has been in another final state, it is left as it is and false is returned.
func (o *orchestrator) retire(ctx context.Context, containerId string, state domain.AgentState) (bool, error) {
	released, err := o.db.Agent().Retire(ctx, containerId, state)
	if err != nil {
		if errors.Is(err, domerr.ErrInvalidTransition) {
			o.logger.Printf("agent %s: not changed to %s: %s", containerId, state, err)
			return false, nil
		}
		return false, err
	}
	if 0 < released {
		o.logger.Printf("agent %s is %s. %d tests are put back to %s", containerId, state, released, domain.TestReady)
	}
	if state == domain.AgentCrashed {
		o.metrics.AgentsCrashed.Inc()
	}
	return true, nil
}
