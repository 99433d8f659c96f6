package orchestration_test

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saveourtool/save-cloud/pkg/domain"
	dbmock "github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db/mock"
	"github.com/saveourtool/save-cloud/pkg/hook"
	"github.com/saveourtool/save-cloud/pkg/metrics"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
	"github.com/saveourtool/save-cloud/pkg/runner"
	runnermock "github.com/saveourtool/save-cloud/pkg/runner/mock"
	"github.com/saveourtool/save-cloud/pkg/token"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var secret = []byte("0123456789abcdef0123456789abcdef")

func settings() orchestration.Settings {
	return orchestration.Settings{
		Template: runner.RunConfiguration{
			Image: "ghcr.io/saveourtool/save-agent:v0.3.2",
			Env:   map[string]string{"JAVA_OPTS": "-Xmx1g"},
		},
		CliArgs:           []string{"--report-type", "json"},
		OrchestratorURL:   "http://save-orchestrator:5100",
		BackendURL:        "http://save-backend:5800",
		HeartbeatInterval: 15 * time.Second,
		HeartbeatTimeout:  time.Minute,
		StartupTimeout:    5 * time.Minute,
		CleanupTimeout:    time.Second,
		StopInterval:      time.Millisecond,
		StopTimeout:       5 * time.Millisecond,
	}
}

type fixture struct {
	db      *dbmock.Database
	runner  *runnermock.ContainerRunner
	metrics *metrics.Metrics
	testee  orchestration.Service
}

func setup(h hook.Hooks) fixture {
	db := dbmock.New()
	r := runnermock.New()
	m := metrics.New(prometheus.NewRegistry())
	testee := orchestration.New(
		db, r, token.New(secret, time.Hour), settings(),
		orchestration.WithHooks(h),
		orchestration.WithMetrics(m),
		orchestration.WithLogger(log.New(io.Discard, "", 0)),
		orchestration.WithClock(func() time.Time { return now }),
	)

	// sweeps of InspectHeartbeats find nothing unless a test says so.
	db.Executions.Impl.FindAwaitingAgents = func(context.Context, time.Time) ([]int64, error) {
		return []int64{}, nil
	}
	db.Executions.Impl.FindUncleaned = func(context.Context, time.Time) ([]int64, error) {
		return []int64{}, nil
	}
	db.Executions.Impl.MarkCleanedUp = func(context.Context, int64) error {
		return nil
	}
	return fixture{db: db, runner: r, metrics: m, testee: testee}
}

func execution(id int64, status domain.ExecutionStatus) *domain.Execution {
	return &domain.Execution{
		ExecutionSpec: domain.ExecutionSpec{
			Id: id, Project: "diktat", Sdk: "java:17", TestSuites: []string{"smoke"},
			Command: "--log all", BatchSize: 2, Replicas: 2,
		},
		Status:    status,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
}

// givenDetail makes Detail work for the execution.
func (f fixture) givenDetail(exec func() *domain.Execution) {
	f.db.Executions.Impl.Get = func(context.Context, int64) (*domain.Execution, error) {
		return exec(), nil
	}
	f.db.Agents.Impl.ListByExecution = func(context.Context, int64) ([]domain.Agent, error) {
		return []domain.Agent{}, nil
	}
	f.db.Executions.Impl.CountTests = func(context.Context, int64) (map[domain.TestStatus]int, error) {
		return map[domain.TestStatus]int{domain.TestReady: 3}, nil
	}
}
