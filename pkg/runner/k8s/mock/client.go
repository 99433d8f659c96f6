package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/saveourtool/save-cloud/pkg/runner/k8s/cluster"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
)

// NewCluster returns cluster.Cluster backed by *MockClient.
//
// Unset Impl functions fail with "[MOCK] not implemented".
func NewCluster() (cluster.Cluster, *MockClient) {
	client := NewMockClient()

	return cluster.AttachCluster(client, "fake-namespace"), client
}

type MockClient struct {
	Impl struct {
		CreateJob func(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
		DeleteJob func(ctx context.Context, namespace string, name string) error
		FindJobs  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubebatch.Job, error)

		GetPod    func(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
		DeletePod func(ctx context.Context, namespace string, name string) error
		FindPods  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Pod, error)
	}

	// Called counts invocations. Read it with Lock held when the client is used concurrently.
	Called struct {
		CreateJob uint64
		DeleteJob uint64
		FindJobs  uint64

		GetPod    uint64
		DeletePod uint64
		FindPods  uint64
	}

	sync.Mutex
}

// MockClient implements cluster.K8sClient
var _ cluster.K8sClient = &MockClient{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) count(c *uint64) {
	m.Lock()
	defer m.Unlock()
	*c += 1
}

func (m *MockClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	m.count(&m.Called.CreateJob)
	if m.Impl.CreateJob == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateJob(ctx, namespace, job)
}

func (m *MockClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	m.count(&m.Called.DeleteJob)
	if m.Impl.DeleteJob == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteJob(ctx, namespace, name)
}

func (m *MockClient) FindJobs(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubebatch.Job, error) {
	m.count(&m.Called.FindJobs)
	if m.Impl.FindJobs == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindJobs(ctx, namespace, ls)
}

func (m *MockClient) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	m.count(&m.Called.GetPod)
	if m.Impl.GetPod == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetPod(ctx, namespace, name)
}

func (m *MockClient) DeletePod(ctx context.Context, namespace string, name string) error {
	m.count(&m.Called.DeletePod)
	if m.Impl.DeletePod == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeletePod(ctx, namespace, name)
}

func (m *MockClient) FindPods(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Pod, error) {
	m.count(&m.Called.FindPods)
	if m.Impl.FindPods == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindPods(ctx, namespace, ls)
}
