package orchestration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	bindexec "github.com/saveourtool/save-cloud/pkg/api-types-binding/executions"
	"github.com/saveourtool/save-cloud/pkg/domain"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
	"github.com/saveourtool/save-cloud/pkg/runner"
	"github.com/saveourtool/save-cloud/pkg/utils"
	"github.com/saveourtool/save-cloud/pkg/utils/retry"
)

func (o *orchestrator) runConfiguration(executionId int64, agentToken string, extraEnv map[string]string) runner.RunConfiguration {
	conf := o.settings.Template

	env := map[string]string{}
	maps.Copy(env, conf.Env)
	maps.Copy(env, extraEnv)
	env[runner.EnvExecutionId] = strconv.FormatInt(executionId, 10)
	env[runner.EnvOrchestratorURL] = o.settings.OrchestratorURL
	env[runner.EnvAgentToken] = agentToken
	if o.settings.BackendURL != "" {
		env[runner.EnvBackendURL] = o.settings.BackendURL
	}
	conf.Env = env
	return conf
}

func (o *orchestrator) InitializeAgents(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
	exec, err := o.db.Execution().New(ctx, spec, tests)
	if err != nil {
		return nil, err
	}
	o.logger.Printf("execution %d is accepted with %d tests", exec.Id, len(tests))

	fail := func(cause error) (*domain.Execution, error) {
		if err := o.db.Execution().SetStatus(ctx, exec.Id, domain.ExecutionError); err != nil {
			o.logger.Printf("execution %d: failed to be %s: %s", exec.Id, domain.ExecutionError, err)
		} else {
			o.metrics.ExecutionsFinished.WithLabelValues(domain.ExecutionError.String()).Inc()
		}
		return nil, cause
	}

	detail, err := o.Detail(ctx, exec.Id)
	if err != nil {
		return fail(err)
	}
	ext, err := o.hooks.Initialize.Before(ctx, bindexec.ComposeDetail(*detail))
	if err != nil {
		o.logger.Printf("execution %d is rejected by hook: %s", exec.Id, err)
		return fail(err)
	}

	tok, err := o.tokens.Issue(exec.Id)
	if err != nil {
		return fail(err)
	}

	conf := o.runConfiguration(exec.Id, tok, ext.Env)
	handles, err := o.runner.CreateAndStart(ctx, exec.Id, conf, exec.Replicas)
	if err != nil {
		o.logger.Printf("execution %d: agents are not started: %s", exec.Id, err)
		return fail(err)
	}
	o.metrics.AgentsStarted.Add(float64(exec.Replicas))

	// Agents not listed here register themselves by heartbeats.
	agents := utils.Map(handles, func(h string) domain.AgentInfo {
		return domain.AgentInfo{ContainerId: h, ContainerName: h}
	})
	if err := o.db.Agent().Register(ctx, exec.Id, agents, o.now()); err != nil {
		o.logger.Printf("execution %d: failed to register agents: %s", exec.Id, err)
	}

	if err := o.db.Execution().SetStatus(ctx, exec.Id, domain.ExecutionRunning); err != nil {
		if cerr := o.runner.CleanupAllByExecution(context.Background(), exec.Id); cerr != nil {
			o.logger.Printf("execution %d: failed to clean up: %s", exec.Id, cerr)
		}
		return fail(err)
	}
	o.metrics.ExecutionsStarted.Inc()
	o.logger.Printf("execution %d is %s with %d agents", exec.Id, domain.ExecutionRunning, exec.Replicas)

	started, err := o.Detail(ctx, exec.Id)
	if err != nil {
		return nil, err
	}
	if err := o.hooks.Initialize.After(ctx, bindexec.ComposeDetail(*started)); err != nil {
		o.logger.Printf("execution %d: after-hook failed: %s", exec.Id, err)
	}
	return &started.Execution, nil
}

// finalize finishes the Execution when all of its agents are final.
//
// Once finished, containers are removed and hooks are called. Their failures are logged only.
// Containers failed to be removed are retried by InspectHeartbeats.
func (o *orchestrator) finalize(ctx context.Context, executionId int64) error {
	status, done, err := o.db.Execution().Finalize(
		ctx, executionId, o.now().Add(-o.settings.StartupTimeout),
	)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}
	o.logger.Printf("execution %d is %s", executionId, status)
	o.metrics.ExecutionsFinished.WithLabelValues(status.String()).Inc()

	// the status is committed. the rest should not be interrupted by the caller.
	ctx, cancel := o.detached(ctx)
	defer cancel()

	detail, err := o.Detail(ctx, executionId)
	if err != nil {
		o.logger.Printf("execution %d: hooks are skipped: %s", executionId, err)
	} else if _, err := o.hooks.Finishing.Before(ctx, bindexec.ComposeDetail(*detail)); err != nil {
		o.logger.Printf("execution %d: before-hook failed: %s", executionId, err)
	}

	if err := o.release(ctx, executionId); err != nil {
		o.logger.Printf("execution %d: failed to clean up: %s", executionId, err)
	}

	if detail != nil {
		if err := o.hooks.Finishing.After(ctx, bindexec.ComposeDetail(*detail)); err != nil {
			o.logger.Printf("execution %d: after-hook failed: %s", executionId, err)
		}
	}
	return nil
}

func (o *orchestrator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if o.settings.CleanupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.settings.CleanupTimeout)
}

// release removes containers of a finished Execution and records it.
func (o *orchestrator) release(ctx context.Context, executionId int64) error {
	if err := o.runner.CleanupAllByExecution(ctx, executionId); err != nil {
		return err
	}
	return o.db.Execution().MarkCleanedUp(ctx, executionId)
}

func (o *orchestrator) StopAgents(ctx context.Context, containerIds []string) (bool, error) {
	for _, id := range containerIds {
		if err := o.runner.Stop(ctx, id); err != nil {
			return false, err
		}
	}

	interval := o.settings.StopInterval
	attempts := 1
	if 0 < interval {
		attempts += int(o.settings.StopTimeout / interval)
	}
	_, err := retry.Blocking(
		ctx, retry.Limited(attempts, retry.StaticBackoff(interval)),
		func() (struct{}, error) {
			for _, id := range containerIds {
				stopped, err := o.runner.IsStopped(ctx, id)
				if err != nil {
					return struct{}{}, err
				}
				if !stopped {
					return struct{}{}, fmt.Errorf("%w: %s is still running", retry.ErrRetry, id)
				}
			}
			return struct{}{}, nil
		},
	)
	if err != nil {
		if errors.Is(err, retry.ErrGiveUp) {
			o.logger.Printf("agents are not stopped in %s: %s", o.settings.StopTimeout, err)
			return false, nil
		}
		return false, err
	}

	executions := map[int64]struct{}{}
	for _, id := range containerIds {
		agent, err := o.db.Agent().Get(ctx, id)
		if err != nil {
			if errors.Is(err, domerr.ErrMissing) {
				continue
			}
			return false, err
		}
		if _, err := o.retire(ctx, id, domain.AgentTerminated); err != nil {
			return false, err
		}
		executions[agent.ExecutionId] = struct{}{}
	}
	for executionId := range executions {
		if err := o.finalize(ctx, executionId); err != nil {
			o.logger.Printf("execution %d: failed to finalize: %s", executionId, err)
		}
	}
	return true, nil
}

func (o *orchestrator) SaveTestStatuses(ctx context.Context, executionId int64, containerId string, results []domain.TestResult) (int, error) {
	saved, err := o.db.Execution().SaveResults(ctx, executionId, containerId, results)
	if err != nil {
		return 0, err
	}
	for _, r := range results {
		o.metrics.TestResults.WithLabelValues(r.Status.String()).Inc()
	}
	return saved, nil
}

func (o *orchestrator) Cleanup(ctx context.Context, executionId int64) error {
	exec, err := o.db.Execution().Get(ctx, executionId)
	if err != nil {
		return err
	}
	if exec.Status.Terminal() {
		return o.release(ctx, executionId)
	}
	return o.runner.CleanupAllByExecution(ctx, executionId)
}
