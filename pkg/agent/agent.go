// Package agent is the main loop of save-agent.
//
// An agent sends heartbeats to the orchestrator periodically, and follows instructions
// answered to them: it runs save-cli for a batch of tests and uploads the results.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/saveourtool/save-cloud/pkg/agent/client"
	"github.com/saveourtool/save-cloud/pkg/agent/savecli"
	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/api/types/tests"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/loop"
)

// ErrTooManyFailures is returned when heartbeats have failed for MaxFailures times in a row.
var ErrTooManyFailures = errors.New("too many heartbeat failures")

type Config struct {
	Info        heartbeats.AgentInfo
	ExecutionId int64

	// interval of heartbeats until InitResponse tells another one.
	HeartbeatInterval time.Duration

	// Run gives up after this many consecutive heartbeat failures.
	MaxFailures int
}

// Status is what an agent knows between heartbeats.
type Status struct {
	// progress of work: STARTING, IDLE, BUSY, FINISHED or ERROR.
	Work domain.AgentState

	// BACKEND_FAILURE or BACKEND_UNREACHABLE while the orchestrator is in trouble. Empty otherwise.
	Backend domain.AgentState

	// consecutive heartbeat failures.
	Failures int

	CliArgs  []string
	Interval time.Duration

	// results not uploaded yet.
	Pending *tests.Report

	// whether save-cli is running.
	Running bool
}

// State is the state to be reported.
func (s Status) State() domain.AgentState {
	if s.Backend != "" {
		return s.Backend
	}
	return s.Work
}

func (s Status) progress() int {
	if s.Work == domain.AgentFinished {
		return 100
	}
	return 0
}

type outcome struct {
	results []tests.Result
	err     error
}

type Agent struct {
	conf   Config
	client client.Client
	cli    savecli.CLI
	logger *log.Logger
	clock  func() time.Time

	done chan outcome
}

type Option func(*Agent)

func WithLogger(l *log.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

func WithClock(clock func() time.Time) Option {
	return func(a *Agent) {
		a.clock = clock
	}
}

func New(conf Config, c client.Client, cli savecli.CLI, options ...Option) *Agent {
	if conf.MaxFailures < 1 {
		conf.MaxFailures = 1
	}
	a := &Agent{
		conf:   conf,
		client: c,
		cli:    cli,
		logger: log.Default(),
		clock:  time.Now,
		done:   make(chan outcome, 1),
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Run sends heartbeats until the orchestrator tells to terminate.
//
// # Returns
//
// - Status: the last status.
//
// - error: nil when terminated by the orchestrator.
// ErrTooManyFailures when the orchestrator has not answered, or ctx.Err() when ctx is done.
func (a *Agent) Run(ctx context.Context) (Status, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	init := Status{Work: domain.AgentStarting, Interval: a.conf.HeartbeatInterval}
	return loop.Start(ctx, init, func(ctx context.Context, s Status) (Status, loop.Next) {
		return a.Cycle(ctx, jobCtx, s)
	})
}

// Cycle is a turn of the loop: it collects the running job, uploads pending results
// and sends a heartbeat.
//
// jobCtx is the context for save-cli started in this cycle.
func (a *Agent) Cycle(ctx context.Context, jobCtx context.Context, s Status) (Status, loop.Next) {
	s = a.collect(s)

	if s.Pending != nil {
		s = a.upload(ctx, s)
		if err := ctx.Err(); err != nil {
			return s, loop.Break(err)
		}
	}

	resp, err := a.client.Heartbeat(ctx, heartbeats.Heartbeat{
		AgentInfo: a.conf.Info,
		State:     s.State().String(),
		ExecutionProgress: heartbeats.ExecutionProgress{
			ExecutionId:       a.conf.ExecutionId,
			PercentCompletion: s.progress(),
		},
		Timestamp: a.clock(),
	})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return s, loop.Break(cerr)
		}
		s.Failures += 1
		s.Backend = backendState(err)
		a.logger.Printf("heartbeat failed (%d/%d): %s", s.Failures, a.conf.MaxFailures, err)
		if a.conf.MaxFailures <= s.Failures {
			return s, loop.Break(fmt.Errorf("%w: %w", ErrTooManyFailures, err))
		}
		return s, loop.Continue(s.Interval)
	}

	s.Failures = 0
	if s.Pending == nil {
		s.Backend = ""
	}

	switch r := resp.(type) {
	case heartbeats.InitResponse:
		s.CliArgs = r.Config.CliArgs
		if 0 < r.Config.HeartbeatIntervalSeconds {
			s.Interval = time.Duration(r.Config.HeartbeatIntervalSeconds) * time.Second
		}
		if s.Work == domain.AgentStarting {
			s.Work = domain.AgentIdle
		}
	case heartbeats.NewJobResponse:
		if s.Running {
			a.logger.Printf("new job is ignored: save-cli is still running")
			break
		}
		cliArgs := r.CliArgs
		if len(cliArgs) == 0 {
			cliArgs = s.CliArgs
		}
		a.logger.Printf("new job: %d tests", len(r.Tests))
		s.Work = domain.AgentBusy
		s.Running = true
		go a.run(jobCtx, cliArgs, r.Tests)
	case heartbeats.TerminateResponse:
		a.logger.Printf("terminated by the orchestrator")
		return s, loop.Break(nil)
	case heartbeats.ContinueResponse, heartbeats.WaitResponse:
	default:
		a.logger.Printf("unknown response: %#v", resp)
	}
	return s, loop.Continue(s.Interval)
}

func (a *Agent) run(ctx context.Context, cliArgs []string, testFiles []string) {
	results, err := a.cli.Run(ctx, cliArgs, testFiles)
	a.done <- outcome{results: results, err: err}
}

// collect takes the outcome of save-cli, if it has finished.
func (a *Agent) collect(s Status) Status {
	if !s.Running {
		return s
	}
	select {
	case o := <-a.done:
		s.Running = false
		if o.err != nil {
			a.logger.Printf("save-cli failed: %s", o.err)
			s.Work = domain.AgentError
			return s
		}
		s.Pending = &tests.Report{ContainerId: a.conf.Info.ContainerId, Results: o.results}
	default:
	}
	return s
}

func (a *Agent) upload(ctx context.Context, s Status) Status {
	saved, err := a.client.PostTestStatuses(ctx, *s.Pending)
	if err == nil {
		a.logger.Printf("%d test results are saved", saved)
		s.Pending = nil
		s.Backend = ""
		s.Work = domain.AgentFinished
		return s
	}

	if rerr := new(client.ResponseError); errors.As(err, &rerr) && !rerr.Retryable() {
		a.logger.Printf("test results are rejected: %s", err)
		s.Pending = nil
		s.Backend = ""
		s.Work = domain.AgentError
		return s
	}

	a.logger.Printf("failed to upload test results. retry later: %s", err)
	s.Backend = backendState(err)
	return s
}

func backendState(err error) domain.AgentState {
	if errors.Is(err, client.ErrUnreachable) {
		return domain.AgentBackendUnreachable
	}
	return domain.AgentBackendFailure
}
