package mock

import (
	"context"
	"errors"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/execution/db"
	dbmock "github.com/saveourtool/save-cloud/pkg/domain/internal/db/mock"
)

type ExecutionInterface struct {
	Impl struct {
		New         func(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error)
		Get         func(ctx context.Context, executionId int64) (*domain.Execution, error)
		SetStatus   func(ctx context.Context, executionId int64, newStatus domain.ExecutionStatus) error
		FindTests   func(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error)
		CountTests  func(ctx context.Context, executionId int64) (map[domain.TestStatus]int, error)
		SaveResults func(ctx context.Context, executionId int64, agentId string, results []domain.TestResult) (int, error)
		Finalize    func(ctx context.Context, executionId int64, startedBefore time.Time) (domain.ExecutionStatus, bool, error)

		FindAwaitingAgents func(ctx context.Context, startedBefore time.Time) ([]int64, error)
		FindUncleaned      func(ctx context.Context, finishedBefore time.Time) ([]int64, error)
		MarkCleanedUp      func(ctx context.Context, executionId int64) error
	}

	Calls struct {
		New dbmock.CallLog[struct {
			Spec  domain.ExecutionSpec
			Tests []domain.TestSource
		}]
		Get       dbmock.CallLog[int64]
		SetStatus dbmock.CallLog[struct {
			ExecutionId int64
			NewStatus   domain.ExecutionStatus
		}]
		FindTests   dbmock.CallLog[domain.TestFindQuery]
		CountTests  dbmock.CallLog[int64]
		SaveResults dbmock.CallLog[struct {
			ExecutionId int64
			AgentId     string
			Results     []domain.TestResult
		}]
		Finalize dbmock.CallLog[int64]

		FindAwaitingAgents dbmock.CallLog[time.Time]
		FindUncleaned      dbmock.CallLog[time.Time]
		MarkCleanedUp      dbmock.CallLog[int64]
	}
}

func NewExecutionInterface() *ExecutionInterface {
	return &ExecutionInterface{}
}

var _ kdb.ExecutionInterface = &ExecutionInterface{}

func (m *ExecutionInterface) New(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
	m.Calls.New = append(m.Calls.New, struct {
		Spec  domain.ExecutionSpec
		Tests []domain.TestSource
	}{Spec: spec, Tests: tests})
	if m.Impl.New != nil {
		return m.Impl.New(ctx, spec, tests)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) Get(ctx context.Context, executionId int64) (*domain.Execution, error) {
	m.Calls.Get = append(m.Calls.Get, executionId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) SetStatus(ctx context.Context, executionId int64, newStatus domain.ExecutionStatus) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		ExecutionId int64
		NewStatus   domain.ExecutionStatus
	}{ExecutionId: executionId, NewStatus: newStatus})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, executionId, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error) {
	m.Calls.FindTests = append(m.Calls.FindTests, query)
	if m.Impl.FindTests != nil {
		return m.Impl.FindTests(ctx, query)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) CountTests(ctx context.Context, executionId int64) (map[domain.TestStatus]int, error) {
	m.Calls.CountTests = append(m.Calls.CountTests, executionId)
	if m.Impl.CountTests != nil {
		return m.Impl.CountTests(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) SaveResults(ctx context.Context, executionId int64, agentId string, results []domain.TestResult) (int, error) {
	m.Calls.SaveResults = append(m.Calls.SaveResults, struct {
		ExecutionId int64
		AgentId     string
		Results     []domain.TestResult
	}{ExecutionId: executionId, AgentId: agentId, Results: results})
	if m.Impl.SaveResults != nil {
		return m.Impl.SaveResults(ctx, executionId, agentId, results)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) Finalize(ctx context.Context, executionId int64, startedBefore time.Time) (domain.ExecutionStatus, bool, error) {
	m.Calls.Finalize = append(m.Calls.Finalize, executionId)
	if m.Impl.Finalize != nil {
		return m.Impl.Finalize(ctx, executionId, startedBefore)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) FindAwaitingAgents(ctx context.Context, startedBefore time.Time) ([]int64, error) {
	m.Calls.FindAwaitingAgents = append(m.Calls.FindAwaitingAgents, startedBefore)
	if m.Impl.FindAwaitingAgents != nil {
		return m.Impl.FindAwaitingAgents(ctx, startedBefore)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) FindUncleaned(ctx context.Context, finishedBefore time.Time) ([]int64, error) {
	m.Calls.FindUncleaned = append(m.Calls.FindUncleaned, finishedBefore)
	if m.Impl.FindUncleaned != nil {
		return m.Impl.FindUncleaned(ctx, finishedBefore)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecutionInterface) MarkCleanedUp(ctx context.Context, executionId int64) error {
	m.Calls.MarkCleanedUp = append(m.Calls.MarkCleanedUp, executionId)
	if m.Impl.MarkCleanedUp != nil {
		return m.Impl.MarkCleanedUp(ctx, executionId)
	}
	panic(errors.New("it should not be called"))
}
