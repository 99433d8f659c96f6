package k8s

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
	"github.com/saveourtool/save-cloud/pkg/runner"
	"github.com/saveourtool/save-cloud/pkg/runner/k8s/cluster"
	"github.com/saveourtool/save-cloud/pkg/utils/retry"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
)

type k8sRunner struct {
	cluster cluster.Cluster
	logger  *log.Logger

	podLookupInterval time.Duration
	podLookupAttempts int
}

var _ runner.ContainerRunner = &k8sRunner{}

type Option func(*k8sRunner)

// WithLogger sets logger. log.Default() is used when not set.
func WithLogger(l *log.Logger) Option {
	return func(r *k8sRunner) {
		r.logger = l
	}
}

// WithPodLookup configures how CreateAndStart waits pods of the Job to be created.
func WithPodLookup(interval time.Duration, attempts int) Option {
	return func(r *k8sRunner) {
		r.podLookupInterval = interval
		r.podLookupAttempts = attempts
	}
}

// New returns a ContainerRunner running agents as a Kubernetes Job per execution.
func New(c cluster.Cluster, options ...Option) runner.ContainerRunner {
	r := &k8sRunner{
		cluster:           c,
		logger:            log.Default(),
		podLookupInterval: time.Second,
		podLookupAttempts: 10,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

func (r *k8sRunner) CreateAndStart(
	ctx context.Context, executionId int64, conf runner.RunConfiguration, replicas int,
) ([]string, error) {
	if replicas < 1 {
		return nil, fmt.Errorf("replicas should be positive: %d", replicas)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	spec := BuildJob(r.cluster.Namespace(), executionId, conf, int32(replicas))
	job, err := r.cluster.NewJob(ctx, spec)
	if err != nil {
		if runnererrors.AsConflict(err) {
			return nil, err
		}
		return nil, runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to create job %s", spec.Name), err,
		)
	}
	r.logger.Printf(
		"job %s is created for execution %d (parallelism = %d)",
		job.Name(), executionId, job.Parallelism(),
	)

	selector := cluster.LabelsToSelector(runner.Labels(executionId))
	names := []string{}
	_, err = retry.Blocking(
		ctx,
		retry.Limited(r.podLookupAttempts, retry.StaticBackoff(r.podLookupInterval)),
		func() (struct{}, error) {
			pods, err := r.cluster.FindPods(ctx, selector)
			if err != nil {
				return struct{}{}, fmt.Errorf("%w: %w", retry.ErrRetry, err)
			}
			names = names[:0]
			for _, p := range pods {
				names = append(names, p.Name())
			}
			if len(names) < replicas {
				return struct{}{}, retry.ErrRetry
			}
			return struct{}{}, nil
		},
	)
	if err != nil {
		// agents register themselves by heartbeats, so it is not fatal.
		r.logger.Printf(
			"execution %d: %d of %d pods are observed (%s)",
			executionId, len(names), replicas, err,
		)
	}

	return names, nil
}

func (r *k8sRunner) IsStopped(ctx context.Context, podName string) (bool, error) {
	p, err := r.cluster.GetPod(ctx, podName)
	if err != nil {
		if runnererrors.AsMissingError(err) {
			return true, nil
		}
		return false, runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to get pod %s", podName), err,
		)
	}
	stopped := PodStopped(p)
	r.logger.Printf("pod %s: phase = %s, stopped = %v", podName, p.Status(), stopped)
	return stopped, nil
}

// PodStopped decides the pod has no running agent.
//
// A pod which has run to completion can still report its container as ready for a while.
// For pods in terminal phase, ContainersReady condition has priority over container statuses.
func PodStopped(p cluster.Pod) bool {
	switch p.Status() {
	case cluster.PodSucceeded, cluster.PodFailed:
		return !(p.Condition(kubecore.ContainersReady) && p.HasRunningContainer())
	default:
		return !p.HasRunningContainer()
	}
}

func (r *k8sRunner) Stop(ctx context.Context, podName string) error {
	if err := r.cluster.DeletePod(ctx, podName); err != nil {
		if runnererrors.AsMissingError(err) {
			r.logger.Printf("pod %s is already gone", podName)
			return nil
		}
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to delete pod %s", podName), err,
		)
	}
	return nil
}

func (r *k8sRunner) CleanupAllByExecution(ctx context.Context, executionId int64) error {
	jobs, err := r.cluster.FindJobs(
		ctx,
		cluster.LabelSelector{runner.LabelExecutionId: cluster.Eq(fmt.Sprint(executionId))},
	)
	if err != nil {
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to find jobs for execution %d", executionId), err,
		)
	}

	switch len(jobs) {
	case 0:
		r.logger.Printf("execution %d: job is already gone. nothing to clean up", executionId)
		return nil
	case 1:
	default:
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("execution %d: expected 1 job to be deleted, but %d jobs are found", executionId, len(jobs)),
			nil,
		)
	}

	j := jobs[0]
	if err := j.Close(); err != nil {
		if kubeerr.IsNotFound(err) {
			r.logger.Printf("execution %d: job %s is already gone", executionId, j.Name())
			return nil
		}
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to delete job %s", j.Name()), err,
		)
	}
	r.logger.Printf("execution %d: job %s is deleted", executionId, j.Name())
	return nil
}
