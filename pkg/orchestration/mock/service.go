package mock

import (
	"context"
	"errors"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
)

type Service struct {
	Impl struct {
		InitializeAgents  func(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error)
		Heartbeat         func(ctx context.Context, hb domain.Heartbeat) (domain.HeartbeatReply, error)
		StopAgents        func(ctx context.Context, containerIds []string) (bool, error)
		SaveTestStatuses  func(ctx context.Context, executionId int64, containerId string, results []domain.TestResult) (int, error)
		FindTests         func(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error)
		Cleanup           func(ctx context.Context, executionId int64) error
		Detail            func(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error)
		InspectHeartbeats func(ctx context.Context, now time.Time) (int, error)
	}
	Calls struct {
		InitializeAgents []struct {
			Spec  domain.ExecutionSpec
			Tests []domain.TestSource
		}
		Heartbeat        []domain.Heartbeat
		StopAgents       [][]string
		SaveTestStatuses []struct {
			ExecutionId int64
			ContainerId string
			Results     []domain.TestResult
		}
		FindTests         []domain.TestFindQuery
		Cleanup           []int64
		Detail            []int64
		InspectHeartbeats []time.Time
	}
}

func New() *Service {
	return &Service{}
}

var _ orchestration.Service = &Service{}

func (m *Service) InitializeAgents(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
	m.Calls.InitializeAgents = append(m.Calls.InitializeAgents, struct {
		Spec  domain.ExecutionSpec
		Tests []domain.TestSource
	}{Spec: spec, Tests: tests})
	if m.Impl.InitializeAgents != nil {
		return m.Impl.InitializeAgents(ctx, spec, tests)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) Heartbeat(ctx context.Context, hb domain.Heartbeat) (domain.HeartbeatReply, error) {
	m.Calls.Heartbeat = append(m.Calls.Heartbeat, hb)
	if m.Impl.Heartbeat != nil {
		return m.Impl.Heartbeat(ctx, hb)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) StopAgents(ctx context.Context, containerIds []string) (bool, error) {
	m.Calls.StopAgents = append(m.Calls.StopAgents, containerIds)
	if m.Impl.StopAgents != nil {
		return m.Impl.StopAgents(ctx, containerIds)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) SaveTestStatuses(ctx context.Context, executionId int64, containerId string, results []domain.TestResult) (int, error) {
	m.Calls.SaveTestStatuses = append(m.Calls.SaveTestStatuses, struct {
		ExecutionId int64
		ContainerId string
		Results     []domain.TestResult
	}{ExecutionId: executionId, ContainerId: containerId, Results: results})
	if m.Impl.SaveTestStatuses != nil {
		return m.Impl.SaveTestStatuses(ctx, executionId, containerId, results)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error) {
	m.Calls.FindTests = append(m.Calls.FindTests, query)
	if m.Impl.FindTests != nil {
		return m.Impl.FindTests(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) Cleanup(ctx context.Context, executionId int64) error {
	m.Calls.Cleanup = append(m.Calls.Cleanup, executionId)
	if m.Impl.Cleanup != nil {
		return m.Impl.Cleanup(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) Detail(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
	m.Calls.Detail = append(m.Calls.Detail, executionId)
	if m.Impl.Detail != nil {
		return m.Impl.Detail(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}

func (m *Service) InspectHeartbeats(ctx context.Context, now time.Time) (int, error) {
	m.Calls.InspectHeartbeats = append(m.Calls.InspectHeartbeats, now)
	if m.Impl.InspectHeartbeats != nil {
		return m.Impl.InspectHeartbeats(ctx, now)
	}
	panic(errors.New("it should not be called"))
}
