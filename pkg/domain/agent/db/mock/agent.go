package mock

import (
	"context"
	"errors"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/agent/db"
	dbmock "github.com/saveourtool/save-cloud/pkg/domain/internal/db/mock"
)

type AgentInterface struct {
	Impl struct {
		Register        func(ctx context.Context, executionId int64, agents []domain.AgentInfo, at time.Time) error
		Heartbeat       func(ctx context.Context, agent domain.Agent) (*domain.Agent, error)
		Get             func(ctx context.Context, containerId string) (*domain.Agent, error)
		ListByExecution func(ctx context.Context, executionId int64) ([]domain.Agent, error)
		SetState        func(ctx context.Context, containerId string, newState domain.AgentState) error
		FindStale       func(ctx context.Context, before time.Time) ([]domain.Agent, error)
		AssignBatch     func(ctx context.Context, containerId string, size int) ([]domain.TestExecution, error)
		Retire          func(ctx context.Context, containerId string, newState domain.AgentState) (int, error)
	}

	Calls struct {
		Register dbmock.CallLog[struct {
			ExecutionId int64
			Agents      []domain.AgentInfo
			At          time.Time
		}]
		Heartbeat       dbmock.CallLog[domain.Agent]
		Get             dbmock.CallLog[string]
		ListByExecution dbmock.CallLog[int64]
		SetState        dbmock.CallLog[struct {
			ContainerId string
			NewState    domain.AgentState
		}]
		FindStale   dbmock.CallLog[time.Time]
		AssignBatch dbmock.CallLog[struct {
			ContainerId string
			Size        int
		}]
		Retire dbmock.CallLog[struct {
			ContainerId string
			NewState    domain.AgentState
		}]
	}
}

func NewAgentInterface() *AgentInterface {
	return &AgentInterface{}
}

var _ kdb.AgentInterface = &AgentInterface{}

func (m *AgentInterface) Register(ctx context.Context, executionId int64, agents []domain.AgentInfo, at time.Time) error {
	m.Calls.Register = append(m.Calls.Register, struct {
		ExecutionId int64
		Agents      []domain.AgentInfo
		At          time.Time
	}{ExecutionId: executionId, Agents: agents, At: at})
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, executionId, agents, at)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) Heartbeat(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	m.Calls.Heartbeat = append(m.Calls.Heartbeat, agent)
	if m.Impl.Heartbeat != nil {
		return m.Impl.Heartbeat(ctx, agent)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) Get(ctx context.Context, containerId string) (*domain.Agent, error) {
	m.Calls.Get = append(m.Calls.Get, containerId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, containerId)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) ListByExecution(ctx context.Context, executionId int64) ([]domain.Agent, error) {
	m.Calls.ListByExecution = append(m.Calls.ListByExecution, executionId)
	if m.Impl.ListByExecution != nil {
		return m.Impl.ListByExecution(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) SetState(ctx context.Context, containerId string, newState domain.AgentState) error {
	m.Calls.SetState = append(m.Calls.SetState, struct {
		ContainerId string
		NewState    domain.AgentState
	}{ContainerId: containerId, NewState: newState})
	if m.Impl.SetState != nil {
		return m.Impl.SetState(ctx, containerId, newState)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) FindStale(ctx context.Context, before time.Time) ([]domain.Agent, error) {
	m.Calls.FindStale = append(m.Calls.FindStale, before)
	if m.Impl.FindStale != nil {
		return m.Impl.FindStale(ctx, before)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) AssignBatch(ctx context.Context, containerId string, size int) ([]domain.TestExecution, error) {
	m.Calls.AssignBatch = append(m.Calls.AssignBatch, struct {
		ContainerId string
		Size        int
	}{ContainerId: containerId, Size: size})
	if m.Impl.AssignBatch != nil {
		return m.Impl.AssignBatch(ctx, containerId, size)
	}
	panic(errors.New("it should not be called"))
}

func (m *AgentInterface) Retire(ctx context.Context, containerId string, newState domain.AgentState) (int, error) {
	m.Calls.Retire = append(m.Calls.Retire, struct {
		ContainerId string
		NewState    domain.AgentState
	}{ContainerId: containerId, NewState: newState})
	if m.Impl.Retire != nil {
		return m.Impl.Retire(ctx, containerId, newState)
	}
	panic(errors.New("it should not be called"))
}
