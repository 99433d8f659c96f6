package cluster

import (
	"context"

	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
)

// K8sClient is the part of k8s API used to run agents.
//
// Methods are flattened from the method chains of k8s.Interface.
type K8sClient interface {
	CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error
	FindJobs(ctx context.Context, namespace string, selector LabelSelector) ([]kubebatch.Job, error)

	GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
	DeletePod(ctx context.Context, namespace string, name string) error
	FindPods(ctx context.Context, namespace string, selector LabelSelector) ([]kubecore.Pod, error)
}

type clientset struct {
	k8s.Interface
}

// WrapK8sClient makes K8sClient from a clientset (real or fake).
func WrapK8sClient(c k8s.Interface) K8sClient {
	return clientset{c}
}

func (c clientset) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return c.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

// DeleteJob deletes the job at once. Its pods are deleted before the job.
func (c clientset) DeleteJob(ctx context.Context, namespace string, name string) error {
	propagation := kubeapimeta.DeletePropagationForeground
	opts := kubeapimeta.NewDeleteOptions(0)
	opts.PropagationPolicy = &propagation
	return c.BatchV1().Jobs(namespace).Delete(ctx, name, *opts)
}

func (c clientset) FindJobs(ctx context.Context, namespace string, selector LabelSelector) ([]kubebatch.Job, error) {
	list, err := c.BatchV1().Jobs(namespace).List(
		ctx, kubeapimeta.ListOptions{LabelSelector: selector.QueryString()},
	)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c clientset) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	return c.CoreV1().Pods(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (c clientset) DeletePod(ctx context.Context, namespace string, name string) error {
	return c.CoreV1().Pods(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (c clientset) FindPods(ctx context.Context, namespace string, selector LabelSelector) ([]kubecore.Pod, error) {
	list, err := c.CoreV1().Pods(namespace).List(
		ctx, kubeapimeta.ListOptions{LabelSelector: selector.QueryString()},
	)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}
