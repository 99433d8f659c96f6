package mock

import (
	"context"
	"errors"

	"github.com/saveourtool/save-cloud/pkg/runner"
)

type ContainerRunner struct {
	Impl struct {
		CreateAndStart        func(ctx context.Context, executionId int64, conf runner.RunConfiguration, replicas int) ([]string, error)
		IsStopped             func(ctx context.Context, containerId string) (bool, error)
		Stop                  func(ctx context.Context, containerId string) error
		CleanupAllByExecution func(ctx context.Context, executionId int64) error
	}
	Calls struct {
		CreateAndStart []struct {
			ExecutionId int64
			Conf        runner.RunConfiguration
			Replicas    int
		}
		IsStopped             []string
		Stop                  []string
		CleanupAllByExecution []int64
	}
}

func New() *ContainerRunner {
	return &ContainerRunner{}
}

var _ runner.ContainerRunner = &ContainerRunner{}

func (m *ContainerRunner) CreateAndStart(ctx context.Context, executionId int64, conf runner.RunConfiguration, replicas int) ([]string, error) {
	m.Calls.CreateAndStart = append(m.Calls.CreateAndStart, struct {
		ExecutionId int64
		Conf        runner.RunConfiguration
		Replicas    int
	}{ExecutionId: executionId, Conf: conf, Replicas: replicas})
	if m.Impl.CreateAndStart != nil {
		return m.Impl.CreateAndStart(ctx, executionId, conf, replicas)
	}
	panic(errors.New("it should not be called"))
}

func (m *ContainerRunner) IsStopped(ctx context.Context, containerId string) (bool, error) {
	m.Calls.IsStopped = append(m.Calls.IsStopped, containerId)
	if m.Impl.IsStopped != nil {
		return m.Impl.IsStopped(ctx, containerId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ContainerRunner) Stop(ctx context.Context, containerId string) error {
	m.Calls.Stop = append(m.Calls.Stop, containerId)
	if m.Impl.Stop != nil {
		return m.Impl.Stop(ctx, containerId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ContainerRunner) CleanupAllByExecution(ctx context.Context, executionId int64) error {
	m.Calls.CleanupAllByExecution = append(m.Calls.CleanupAllByExecution, executionId)
	if m.Impl.CleanupAllByExecution != nil {
		return m.Impl.CleanupAllByExecution(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}
