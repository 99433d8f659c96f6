package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/saveourtool/save-cloud/pkg/domain"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
)

var terminate = domain.HeartbeatReply{Action: domain.ActionTerminate}

func (o *orchestrator) Heartbeat(ctx context.Context, hb domain.Heartbeat) (domain.HeartbeatReply, error) {
	o.metrics.Heartbeats.WithLabelValues(hb.State.String()).Inc()

	exec, err := o.db.Execution().Get(ctx, hb.ExecutionId)
	if err != nil {
		return domain.HeartbeatReply{}, err
	}

	agent, err := o.db.Agent().Heartbeat(ctx, domain.Agent{
		AgentInfo:     hb.Agent,
		ExecutionId:   hb.ExecutionId,
		State:         hb.State,
		Progress:      hb.Progress,
		LastHeartbeat: o.now(),
	})
	if err != nil {
		return domain.HeartbeatReply{}, err
	}
	if agent.ExecutionId != exec.Id {
		return domain.HeartbeatReply{}, fmt.Errorf(
			"%w: agent %s belongs to execution %d, not %d",
			domerr.ErrConflict, agent.ContainerId, agent.ExecutionId, exec.Id,
		)
	}

	if exec.Status.Terminal() {
		if !agent.State.Final() {
			if _, err := o.retire(ctx, agent.ContainerId, domain.AgentTerminated); err != nil {
				return domain.HeartbeatReply{}, err
			}
		}
		return terminate, nil
	}

	// The recorded state can differ from the reported one:
	// once an agent is final (e.g. CRASHED by the watchdog), it stays so.
	if agent.State.Final() {
		if _, err := o.retire(ctx, agent.ContainerId, agent.State); err != nil {
			return domain.HeartbeatReply{}, err
		}
		if err := o.finalize(ctx, exec.Id); err != nil {
			return domain.HeartbeatReply{}, err
		}
		return terminate, nil
	}

	switch agent.State {
	case domain.AgentStarting:
		return domain.HeartbeatReply{
			Action:            domain.ActionInit,
			CliArgs:           o.cliArgs(*exec),
			HeartbeatInterval: o.settings.HeartbeatInterval,
		}, nil
	case domain.AgentIdle:
		return o.dispatch(ctx, *exec, *agent)
	case domain.AgentBusy:
		return domain.HeartbeatReply{Action: domain.ActionContinue}, nil
	case domain.AgentFinished:
		running, err := o.db.Execution().FindTests(ctx, domain.TestFindQuery{
			ExecutionId: exec.Id,
			Status:      []domain.TestStatus{domain.TestRunning},
			AgentId:     agent.ContainerId,
		})
		if err != nil {
			return domain.HeartbeatReply{}, err
		}
		if len(running) != 0 {
			o.logger.Printf(
				"agent %s (execution %d) finished, but %d tests have no results",
				agent.ContainerId, exec.Id, len(running),
			)
			if _, err := o.retire(ctx, agent.ContainerId, domain.AgentCrashed); err != nil {
				return domain.HeartbeatReply{}, err
			}
			if err := o.finalize(ctx, exec.Id); err != nil {
				return domain.HeartbeatReply{}, err
			}
			return terminate, nil
		}
		return o.dispatch(ctx, *exec, *agent)
	case domain.AgentBackendFailure, domain.AgentBackendUnreachable:
		return domain.HeartbeatReply{Action: domain.ActionWait}, nil
	default:
		return domain.HeartbeatReply{}, fmt.Errorf("agent %s: unexpected state %s", agent.ContainerId, agent.State)
	}
}

// dispatch hands the next batch to the agent, or lets it go when nothing is left.
//
// An IDLE agent still having RUNNING tests has missed the reply carrying them,
// so the same batch is sent again.
func (o *orchestrator) dispatch(ctx context.Context, exec domain.Execution, agent domain.Agent) (domain.HeartbeatReply, error) {
	if agent.State == domain.AgentIdle {
		assigned, err := o.db.Execution().FindTests(ctx, domain.TestFindQuery{
			ExecutionId: exec.Id,
			Status:      []domain.TestStatus{domain.TestRunning},
			AgentId:     agent.ContainerId,
		})
		if err != nil {
			return domain.HeartbeatReply{}, err
		}
		if len(assigned) != 0 {
			o.logger.Printf(
				"agent %s (execution %d) is idle with %d running tests. they are sent again",
				agent.ContainerId, exec.Id, len(assigned),
			)
			return domain.HeartbeatReply{
				Action:  domain.ActionNewJob,
				Tests:   assigned,
				CliArgs: o.cliArgs(exec),
			}, nil
		}
	}

	size := exec.BatchSize
	if size <= 0 {
		size = domain.DefaultBatchSize
	}

	tests, err := o.db.Agent().AssignBatch(ctx, agent.ContainerId, size)
	if err != nil {
		if errors.Is(err, domerr.ErrInvalidTransition) {
			// became final meanwhile.
			return terminate, nil
		}
		return domain.HeartbeatReply{}, err
	}

	if len(tests) == 0 {
		if _, err := o.retire(ctx, agent.ContainerId, domain.AgentTerminated); err != nil {
			return domain.HeartbeatReply{}, err
		}
		if err := o.finalize(ctx, exec.Id); err != nil {
			return domain.HeartbeatReply{}, err
		}
		return terminate, nil
	}

	o.metrics.TestsDispatched.Add(float64(len(tests)))
	return domain.HeartbeatReply{
		Action:  domain.ActionNewJob,
		Tests:   tests,
		CliArgs: o.cliArgs(exec),
	}, nil
}
