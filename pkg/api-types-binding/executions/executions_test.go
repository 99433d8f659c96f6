package executions_test

import (
	"testing"
	"time"

	api_executions "github.com/saveourtool/save-cloud/pkg/api/types/executions"
	bindexec "github.com/saveourtool/save-cloud/pkg/api-types-binding/executions"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/utils/cmp"
)

func TestParseRequest(t *testing.T) {
	t.Run("batch size defaults", func(t *testing.T) {
		spec, tests := bindexec.ParseRequest(api_executions.Request{
			ExecutionId: 3, Project: "diktat", Sdk: "java:17", TestSuites: []string{"smoke"},
			Replicas: 2,
			Tests: []api_executions.Test{
				{FilePath: "smoke/a/Test1.kt", TestSuite: "smoke"},
			},
		})
		if spec.BatchSize != domain.DefaultBatchSize {
			t.Errorf("mismatch. (expected, actual) = (%d, %d)", domain.DefaultBatchSize, spec.BatchSize)
		}
		if spec.Id != 3 || spec.Replicas != 2 || spec.Project != "diktat" {
			t.Errorf("unexpected spec: %+v", spec)
		}
		if !cmp.SliceEq(tests, []domain.TestSource{{FilePath: "smoke/a/Test1.kt", TestSuite: "smoke"}}) {
			t.Errorf("unexpected tests: %+v", tests)
		}
	})
}

func TestComposeDetail(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actual := bindexec.ComposeDetail(domain.ExecutionDetail{
		Execution: domain.Execution{
			ExecutionSpec: domain.ExecutionSpec{Id: 3, Project: "diktat", Replicas: 1, BatchSize: 5},
			Status:        domain.ExecutionRunning,
			CreatedAt:     now, UpdatedAt: now,
		},
		Agents: []domain.Agent{
			{
				AgentInfo:   domain.AgentInfo{ContainerId: "pod-1", ContainerName: "pod-1", Version: "0.3.2"},
				ExecutionId: 3, State: domain.AgentBusy, Progress: 40, LastHeartbeat: now,
			},
		},
		Tests: map[domain.TestStatus]int{domain.TestRunning: 2, domain.TestPassed: 3},
	})

	if actual.Status != "RUNNING" || actual.ExecutionId != 3 {
		t.Errorf("unexpected summary: %+v", actual.Summary)
	}
	if actual.TestSuites == nil {
		t.Error("test suites should be empty, not nil")
	}
	if len(actual.Agents) != 1 || actual.Agents[0].State != "BUSY" || actual.Agents[0].Progress != 40 {
		t.Errorf("unexpected agents: %+v", actual.Agents)
	}
	if !cmp.MapEq(actual.Tests, map[string]int{"RUNNING": 2, "PASSED": 3}) {
		t.Errorf("unexpected tests: %v", actual.Tests)
	}
}
