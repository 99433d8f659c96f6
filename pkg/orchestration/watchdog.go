package orchestration

import (
	"context"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
)

func (o *orchestrator) InspectHeartbeats(ctx context.Context, now time.Time) (int, error) {
	stale, err := o.db.Agent().FindStale(ctx, now.Add(-o.settings.HeartbeatTimeout))
	if err != nil {
		return 0, err
	}

	crashed := 0
	executions := map[int64]struct{}{}
	for _, a := range stale {
		o.logger.Printf(
			"agent %s (execution %d): no heartbeats since %s",
			a.ContainerId, a.ExecutionId, a.LastHeartbeat.Format(time.RFC3339),
		)
		changed, err := o.retire(ctx, a.ContainerId, domain.AgentCrashed)
		if err != nil {
			o.logger.Printf("agent %s: failed to be %s: %s", a.ContainerId, domain.AgentCrashed, err)
			continue
		}
		if changed {
			crashed += 1
		}
		executions[a.ExecutionId] = struct{}{}
	}

	awaiting, err := o.db.Execution().FindAwaitingAgents(ctx, now.Add(-o.settings.StartupTimeout))
	if err != nil {
		return crashed, err
	}
	for _, executionId := range awaiting {
		executions[executionId] = struct{}{}
	}

	for executionId := range executions {
		if err := o.finalize(ctx, executionId); err != nil {
			o.logger.Printf("execution %d: failed to finalize: %s", executionId, err)
		}
	}

	// finalize gives up removing containers after CleanupTimeout.
	uncleaned, err := o.db.Execution().FindUncleaned(ctx, now.Add(-o.settings.CleanupTimeout))
	if err != nil {
		return crashed, err
	}
	for _, executionId := range uncleaned {
		if err := o.release(ctx, executionId); err != nil {
			o.logger.Printf("execution %d: failed to clean up: %s", executionId, err)
			continue
		}
		o.logger.Printf("execution %d: containers left behind are removed", executionId)
	}
	return crashed, nil
}
