package k8s_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
	"github.com/saveourtool/save-cloud/pkg/runner"
	rk8s "github.com/saveourtool/save-cloud/pkg/runner/k8s"
	"github.com/saveourtool/save-cloud/pkg/runner/k8s/cluster"
	"github.com/saveourtool/save-cloud/pkg/runner/k8s/mock"
	"github.com/saveourtool/save-cloud/pkg/utils/try"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const namespace = "save-cloud"

func agentPod(executionId int64, name string) *kubecore.Pod {
	return &kubecore.Pod{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    runner.Labels(executionId),
		},
	}
}

func runConfiguration() runner.RunConfiguration {
	return runner.RunConfiguration{
		Image:   "ghcr.io/saveourtool/save-agent:v0.3.2",
		Command: []string{"/home/save-agent/save-agent"},
		Env: map[string]string{
			"SAVE_EXECUTION_ID":     "7",
			"SAVE_ORCHESTRATOR_URL": "http://save-orchestrator",
		},
		Resources: runner.Resources{
			Requests: map[string]resource.Quantity{"cpu": resource.MustParse("100m")},
			Limits:   map[string]resource.Quantity{"memory": resource.MustParse("300Mi")},
		},
		TTLAfterFinished: 10 * time.Minute,
	}
}

func newRunner(clientset *fake.Clientset) runner.ContainerRunner {
	c := cluster.AttachCluster(cluster.WrapK8sClient(clientset), namespace)
	return rk8s.New(c, rk8s.WithPodLookup(time.Millisecond, 3))
}

func TestCreateAndStart(t *testing.T) {
	t.Run("it creates a Job running agents in parallel", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset(
			agentPod(7, "save-execution-7-aaaaa"),
			agentPod(7, "save-execution-7-bbbbb"),
			agentPod(7, "save-execution-7-ccccc"),
			agentPod(8, "save-execution-8-xxxxx"),
		)
		testee := newRunner(clientset)

		names, err := testee.CreateAndStart(ctx, 7, runConfiguration(), 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 3 {
			t.Errorf("unexpected pods: %v", names)
		}

		job := try.To(
			clientset.BatchV1().Jobs(namespace).Get(ctx, "save-execution-7", kubeapimeta.GetOptions{}),
		).OrFatal(t)

		if *job.Spec.Parallelism != 3 || *job.Spec.Completions != 3 {
			t.Errorf(
				"parallelism and completions should be replicas. (parallelism, completions) = (%d, %d)",
				*job.Spec.Parallelism, *job.Spec.Completions,
			)
		}
		if *job.Spec.BackoffLimit != 0 {
			t.Errorf("backoffLimit should be 0: %d", *job.Spec.BackoffLimit)
		}
		if job.Spec.TTLSecondsAfterFinished == nil || *job.Spec.TTLSecondsAfterFinished != 600 {
			t.Errorf("unexpected ttl: %v", job.Spec.TTLSecondsAfterFinished)
		}
		if job.Labels[runner.LabelExecutionId] != "7" {
			t.Errorf("unexpected labels: %v", job.Labels)
		}

		pod := job.Spec.Template.Spec
		if pod.RestartPolicy != kubecore.RestartPolicyNever {
			t.Errorf("unexpected restart policy: %s", pod.RestartPolicy)
		}
		if len(pod.Containers) != 1 {
			t.Fatalf("unexpected containers: %v", pod.Containers)
		}
		container := pod.Containers[0]
		if container.Image != "ghcr.io/saveourtool/save-agent:v0.3.2" {
			t.Errorf("unexpected image: %s", container.Image)
		}
		if q := container.Resources.Requests[kubecore.ResourceCPU]; q.Cmp(resource.MustParse("100m")) != 0 {
			t.Errorf("unexpected cpu request: %s", q.String())
		}
		if q := container.Resources.Limits[kubecore.ResourceMemory]; q.Cmp(resource.MustParse("300Mi")) != 0 {
			t.Errorf("unexpected memory limit: %s", q.String())
		}

		env := map[string]kubecore.EnvVar{}
		for _, e := range container.Env {
			env[e.Name] = e
		}
		if env["SAVE_EXECUTION_ID"].Value != "7" {
			t.Errorf("unexpected env: %v", container.Env)
		}
		if podName, ok := env[rk8s.EnvPodName]; !ok || podName.ValueFrom == nil ||
			podName.ValueFrom.FieldRef.FieldPath != "metadata.name" {
			t.Errorf("pod name should be given by downward API: %v", container.Env)
		}
	})

	t.Run("when pods are not created enough, it returns found pods", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset(agentPod(7, "save-execution-7-aaaaa"))
		testee := newRunner(clientset)

		names, err := testee.CreateAndStart(ctx, 7, runConfiguration(), 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(names) != 1 || names[0] != "save-execution-7-aaaaa" {
			t.Errorf("unexpected pods: %v", names)
		}
	})

	t.Run("when the Job exists, it returns ErrConflict", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset(&kubebatch.Job{
			ObjectMeta: kubeapimeta.ObjectMeta{Name: "save-execution-7", Namespace: namespace},
		})
		testee := newRunner(clientset)

		_, err := testee.CreateAndStart(ctx, 7, runConfiguration(), 2)
		if !runnererrors.AsConflict(err) {
			t.Errorf("expected ErrConflict, but got %v", err)
		}
	})

	t.Run("when k8s API fails, it returns ErrContainerRunner", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset()
		expectedErr := errors.New("fake error")
		clientset.PrependReactor(
			"create", "jobs",
			func(k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, expectedErr
			},
		)
		testee := newRunner(clientset)

		_, err := testee.CreateAndStart(ctx, 7, runConfiguration(), 2)
		if !runnererrors.AsContainerRunnerError(err) {
			t.Errorf("expected ErrContainerRunner, but got %v", err)
		}
		if !errors.Is(err, expectedErr) {
			t.Errorf("cause should be kept: %v", err)
		}
	})

	t.Run("when image is broken, it does not call k8s API", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset()
		testee := newRunner(clientset)

		conf := runConfiguration()
		conf.Image = "Not An Image"
		if _, err := testee.CreateAndStart(ctx, 7, conf, 2); err == nil {
			t.Fatal("expected error, but got nil")
		}
		if len(clientset.Actions()) != 0 {
			t.Errorf("unexpected actions: %v", clientset.Actions())
		}
	})
}

func TestIsStopped(t *testing.T) {
	running := kubecore.ContainerStatus{
		Name: "save-agent", Ready: true,
		State: kubecore.ContainerState{Running: &kubecore.ContainerStateRunning{}},
	}
	terminated := kubecore.ContainerStatus{
		Name: "save-agent", Ready: false,
		State: kubecore.ContainerState{Terminated: &kubecore.ContainerStateTerminated{ExitCode: 0}},
	}
	containersReady := func(s kubecore.ConditionStatus) []kubecore.PodCondition {
		return []kubecore.PodCondition{{Type: kubecore.ContainersReady, Status: s}}
	}

	for name, testcase := range map[string]struct {
		status kubecore.PodStatus
		then   bool
	}{
		"running pod with ready container is not stopped": {
			status: kubecore.PodStatus{
				Phase:             kubecore.PodRunning,
				Conditions:        containersReady(kubecore.ConditionTrue),
				ContainerStatuses: []kubecore.ContainerStatus{running},
			},
			then: false,
		},
		"running pod whose container has terminated is stopped": {
			status: kubecore.PodStatus{
				Phase:             kubecore.PodRunning,
				Conditions:        containersReady(kubecore.ConditionFalse),
				ContainerStatuses: []kubecore.ContainerStatus{terminated},
			},
			then: true,
		},
		"pending pod is stopped (no container is running)": {
			status: kubecore.PodStatus{Phase: kubecore.PodPending},
			then:   true,
		},
		"completed pod still reporting ready container, but ContainersReady is false, is stopped": {
			status: kubecore.PodStatus{
				Phase:             kubecore.PodSucceeded,
				Conditions:        containersReady(kubecore.ConditionFalse),
				ContainerStatuses: []kubecore.ContainerStatus{running},
			},
			then: true,
		},
		"completed pod with ContainersReady and running container is not stopped yet": {
			status: kubecore.PodStatus{
				Phase:             kubecore.PodSucceeded,
				Conditions:        containersReady(kubecore.ConditionTrue),
				ContainerStatuses: []kubecore.ContainerStatus{running},
			},
			then: false,
		},
		"failed pod is stopped": {
			status: kubecore.PodStatus{
				Phase:             kubecore.PodFailed,
				ContainerStatuses: []kubecore.ContainerStatus{terminated},
			},
			then: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			pod := agentPod(7, "save-execution-7-aaaaa")
			pod.Status = testcase.status
			testee := newRunner(fake.NewSimpleClientset(pod))

			actual, err := testee.IsStopped(context.Background(), "save-execution-7-aaaaa")
			if err != nil {
				t.Fatal(err)
			}
			if actual != testcase.then {
				t.Errorf("mismatch. (expected, actual) = (%v, %v)", testcase.then, actual)
			}
		})
	}

	t.Run("missing pod is stopped", func(t *testing.T) {
		testee := newRunner(fake.NewSimpleClientset())
		actual, err := testee.IsStopped(context.Background(), "save-execution-7-aaaaa")
		if err != nil {
			t.Fatal(err)
		}
		if !actual {
			t.Error("missing pod should be stopped")
		}
	})

	t.Run("when k8s API fails, it returns ErrContainerRunner", func(t *testing.T) {
		c, client := mock.NewCluster()
		client.Impl.GetPod = func(context.Context, string, string) (*kubecore.Pod, error) {
			return nil, kubeerr.NewInternalError(errors.New("fake"))
		}
		testee := rk8s.New(c)
		if _, err := testee.IsStopped(context.Background(), "pod"); !runnererrors.AsContainerRunnerError(err) {
			t.Errorf("expected ErrContainerRunner, but got %v", err)
		}
	})
}

func TestStop(t *testing.T) {
	t.Run("it deletes the pod", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset(agentPod(7, "save-execution-7-aaaaa"))
		testee := newRunner(clientset)

		if err := testee.Stop(ctx, "save-execution-7-aaaaa"); err != nil {
			t.Fatal(err)
		}
		_, err := clientset.CoreV1().Pods(namespace).Get(ctx, "save-execution-7-aaaaa", kubeapimeta.GetOptions{})
		if !kubeerr.IsNotFound(err) {
			t.Errorf("pod should be deleted: %v", err)
		}
	})

	t.Run("stopping missing pod is not an error", func(t *testing.T) {
		testee := newRunner(fake.NewSimpleClientset())
		if err := testee.Stop(context.Background(), "save-execution-7-aaaaa"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCleanupAllByExecution(t *testing.T) {
	job := func(name string, executionId int64) *kubebatch.Job {
		return &kubebatch.Job{
			ObjectMeta: kubeapimeta.ObjectMeta{
				Name: name, Namespace: namespace, Labels: runner.Labels(executionId),
			},
		}
	}

	t.Run("it deletes the Job of the execution, only", func(t *testing.T) {
		ctx := context.Background()
		clientset := fake.NewSimpleClientset(
			job("save-execution-7", 7), job("save-execution-8", 8),
		)
		testee := newRunner(clientset)

		if err := testee.CleanupAllByExecution(ctx, 7); err != nil {
			t.Fatal(err)
		}

		jobs := try.To(clientset.BatchV1().Jobs(namespace).List(ctx, kubeapimeta.ListOptions{})).OrFatal(t)
		if len(jobs.Items) != 1 || jobs.Items[0].Name != "save-execution-8" {
			t.Errorf("unexpected remaining jobs: %v", jobs.Items)
		}

		deletes := 0
		for _, a := range clientset.Actions() {
			if a.Matches("delete", "jobs") {
				deletes += 1
			}
		}
		if deletes != 1 {
			t.Errorf("exactly one job should be deleted: %d", deletes)
		}
	})

	t.Run("for unknown execution, it does nothing", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(job("save-execution-8", 8))
		testee := newRunner(clientset)

		if err := testee.CleanupAllByExecution(context.Background(), 7); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		for _, a := range clientset.Actions() {
			if a.GetVerb() == "delete" {
				t.Errorf("unexpected deletion: %v", a)
			}
		}
	})

	t.Run("when more than one Jobs are found, it fails", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(
			job("save-execution-7", 7), job("save-execution-7-retry", 7),
		)
		testee := newRunner(clientset)

		err := testee.CleanupAllByExecution(context.Background(), 7)
		if !runnererrors.AsContainerRunnerError(err) {
			t.Errorf("expected ErrContainerRunner, but got %v", err)
		}
	})

	t.Run("when the Job disappears before deletion, it does nothing", func(t *testing.T) {
		c, client := mock.NewCluster()
		client.Impl.FindJobs = func(_ context.Context, _ string, ls cluster.LabelSelector) ([]kubebatch.Job, error) {
			if q := ls.QueryString(); q != runner.LabelExecutionId+"=7" {
				t.Errorf("unexpected selector: %s", q)
			}
			return []kubebatch.Job{*job("save-execution-7", 7)}, nil
		}
		client.Impl.DeleteJob = func(_ context.Context, _ string, name string) error {
			return kubeerr.NewNotFound(schema.GroupResource{Group: "batch", Resource: "jobs"}, name)
		}

		testee := rk8s.New(c)
		if err := testee.CleanupAllByExecution(context.Background(), 7); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if client.Called.DeleteJob != 1 {
			t.Errorf("DeleteJob should be called once: %d", client.Called.DeleteJob)
		}
	})
}
