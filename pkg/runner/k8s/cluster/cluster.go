// Package cluster is a thin object model over k8s Jobs and Pods running agents.
package cluster

import (
	"context"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"

	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
)

// Job is a snapshot of k8s Job.
type Job interface {
	Name() string
	Parallelism() int32

	// Close deletes the job and its pods.
	Close() error
}

type PodPhase kubecore.PodPhase

const (
	PodPending   = PodPhase(kubecore.PodPending)
	PodRunning   = PodPhase(kubecore.PodRunning)
	PodSucceeded = PodPhase(kubecore.PodSucceeded)
	PodFailed    = PodPhase(kubecore.PodFailed)
	PodUnknown   = PodPhase(kubecore.PodUnknown)
)

// Pod is a snapshot of k8s Pod.
type Pod interface {
	Name() string
	Status() PodPhase

	// HasRunningContainer tells some container is ready and running.
	HasRunningContainer() bool

	// Condition tells the condition is True.
	Condition(kubecore.PodConditionType) bool
}

// Cluster manages Jobs and Pods in a namespace.
//
// Errors for missing resources are runnererrors.ErrMissing,
// and for existing resources are runnererrors.ErrConflict.
type Cluster interface {
	Namespace() string

	NewJob(context.Context, *kubebatch.Job) (Job, error)
	FindJobs(context.Context, LabelSelector) ([]Job, error)

	GetPod(context.Context, string) (Pod, error)
	FindPods(context.Context, LabelSelector) ([]Pod, error)
	DeletePod(context.Context, string) error
}

// AttachCluster makes Cluster working in namespace.
func AttachCluster(client K8sClient, namespace string) Cluster {
	return &k8sCluster{client: client, namespace: namespace}
}

type k8sCluster struct {
	client    K8sClient
	namespace string
}

func (c *k8sCluster) Namespace() string { return c.namespace }

func (c *k8sCluster) NewJob(ctx context.Context, spec *kubebatch.Job) (Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created, err := c.client.CreateJob(ctx, c.namespace, spec)
	switch {
	case kubeerr.IsAlreadyExists(err):
		return nil, runnererrors.NewConflictCausedBy(spec.Name, err)
	case err != nil:
		return nil, err
	}
	return c.job(*created), nil
}

func (c *k8sCluster) FindJobs(ctx context.Context, selector LabelSelector) ([]Job, error) {
	found, err := c.client.FindJobs(ctx, c.namespace, selector)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(found))
	for _, j := range found {
		jobs = append(jobs, c.job(j))
	}
	return jobs, nil
}

func (c *k8sCluster) GetPod(ctx context.Context, name string) (Pod, error) {
	p, err := c.client.GetPod(ctx, c.namespace, name)
	switch {
	case kubeerr.IsNotFound(err):
		return nil, runnererrors.NewMissingCausedBy(name, err)
	case err != nil:
		return nil, err
	}
	return pod{desc: *p}, nil
}

func (c *k8sCluster) FindPods(ctx context.Context, selector LabelSelector) ([]Pod, error) {
	found, err := c.client.FindPods(ctx, c.namespace, selector)
	if err != nil {
		return nil, err
	}
	pods := make([]Pod, 0, len(found))
	for _, p := range found {
		pods = append(pods, pod{desc: p})
	}
	return pods, nil
}

func (c *k8sCluster) DeletePod(ctx context.Context, name string) error {
	err := c.client.DeletePod(ctx, c.namespace, name)
	if kubeerr.IsNotFound(err) {
		return runnererrors.NewMissingCausedBy(name, err)
	}
	return err
}

func (c *k8sCluster) job(j kubebatch.Job) job {
	return job{
		spec: j,
		// deletion should run even if the caller's context is done.
		delete: func() error {
			return c.client.DeleteJob(context.Background(), c.namespace, j.Name)
		},
	}
}

type job struct {
	spec   kubebatch.Job
	delete func() error
}

func (j job) Name() string { return j.spec.Name }

func (j job) Parallelism() int32 {
	if p := j.spec.Spec.Parallelism; p != nil {
		return *p
	}
	return 1
}

func (j job) Close() error { return j.delete() }

type pod struct {
	desc kubecore.Pod
}

func (p pod) Name() string { return p.desc.Name }

func (p pod) Status() PodPhase { return PodPhase(p.desc.Status.Phase) }

func (p pod) HasRunningContainer() bool {
	for _, cs := range p.desc.Status.ContainerStatuses {
		if cs.Ready && cs.State.Running != nil {
			return true
		}
	}
	return false
}

func (p pod) Condition(typ kubecore.PodConditionType) bool {
	for _, cond := range p.desc.Status.Conditions {
		if cond.Type == typ {
			return cond.Status == kubecore.ConditionTrue
		}
	}
	return false
}
