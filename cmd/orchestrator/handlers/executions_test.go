package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/saveourtool/save-cloud/cmd/orchestrator/handlers"
	httptestutil "github.com/saveourtool/save-cloud/internal/testutils/http"
	"github.com/saveourtool/save-cloud/pkg/api/types/executions"
	"github.com/saveourtool/save-cloud/pkg/domain"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
	"github.com/saveourtool/save-cloud/pkg/orchestration/mock"
	"github.com/saveourtool/save-cloud/pkg/utils/cmp"
)

func statusOf(err error) int {
	herr := new(echo.HTTPError)
	if errors.As(err, &herr) {
		return herr.Code
	}
	return 0
}

var createdAt = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

func execution(id int64, status domain.ExecutionStatus) domain.Execution {
	return domain.Execution{
		ExecutionSpec: domain.ExecutionSpec{
			Id: id, Project: "diktat", Sdk: "openjdk:17",
			TestSuites: []string{"smoke"}, BatchSize: 2, Replicas: 2,
		},
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInitializeAgentsHandler(t *testing.T) {
	body := `{
	"executionId": 7,
	"project": "diktat",
	"sdk": "openjdk:17",
	"testSuites": ["smoke"],
	"command": "--log all",
	"replicas": 2,
	"tests": [
		{"filePath": "smoke/a/Test1.kt", "testSuite": "smoke"},
		{"filePath": "smoke/a/Test2.kt", "testSuite": "smoke"}
	]
}`

	t.Run("it starts the execution and responds its detail with 202", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.InitializeAgents = func(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
			e := execution(spec.Id, domain.ExecutionRunning)
			return &e, nil
		}
		svc.Impl.Detail = func(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
			return &domain.ExecutionDetail{
				Execution: execution(executionId, domain.ExecutionRunning),
				Agents: []domain.Agent{
					{
						AgentInfo:   domain.AgentInfo{ContainerId: "save-execution-7-0", ContainerName: "save-execution-7-0"},
						ExecutionId: executionId, State: domain.AgentStarting, LastHeartbeat: createdAt,
					},
				},
				Tests: map[domain.TestStatus]int{domain.TestReady: 2},
			}, nil
		}

		e := echo.New()
		c, resp := httptestutil.Post(
			e, "/initializeAgents", strings.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		if err := handlers.InitializeAgentsHandler(svc)(c); err != nil {
			t.Fatal(err)
		}

		if resp.Code != http.StatusAccepted {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusAccepted, resp.Code)
		}

		if len(svc.Calls.InitializeAgents) != 1 {
			t.Fatalf("InitializeAgents is called %d times", len(svc.Calls.InitializeAgents))
		}
		call := svc.Calls.InitializeAgents[0]
		expectedSpec := domain.ExecutionSpec{
			Id: 7, Project: "diktat", Sdk: "openjdk:17", TestSuites: []string{"smoke"},
			Command: "--log all", BatchSize: domain.DefaultBatchSize, Replicas: 2,
		}
		if call.Spec.Id != expectedSpec.Id ||
			call.Spec.Command != expectedSpec.Command ||
			call.Spec.BatchSize != expectedSpec.BatchSize ||
			call.Spec.Replicas != expectedSpec.Replicas ||
			!cmp.SliceEq(call.Spec.TestSuites, expectedSpec.TestSuites) {
			t.Errorf("spec: (expected, actual) = (%+v, %+v)", expectedSpec, call.Spec)
		}
		if !cmp.SliceEq(call.Tests, []domain.TestSource{
			{FilePath: "smoke/a/Test1.kt", TestSuite: "smoke"},
			{FilePath: "smoke/a/Test2.kt", TestSuite: "smoke"},
		}) {
			t.Errorf("unexpected tests: %+v", call.Tests)
		}

		actual := executions.Detail{}
		if err := json.Unmarshal(resp.Body.Bytes(), &actual); err != nil {
			t.Fatal(err)
		}
		if actual.ExecutionId != 7 || actual.Status != "RUNNING" {
			t.Errorf("unexpected summary: %+v", actual.Summary)
		}
		if len(actual.Agents) != 1 || actual.Agents[0].State != "STARTING" {
			t.Errorf("unexpected agents: %+v", actual.Agents)
		}
		if actual.Tests["READY_FOR_TESTING"] != 2 {
			t.Errorf("unexpected tests: %+v", actual.Tests)
		}
	})

	t.Run("when detail is not available, it responds the execution without agents", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.InitializeAgents = func(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
			e := execution(spec.Id, domain.ExecutionRunning)
			return &e, nil
		}
		svc.Impl.Detail = func(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
			return nil, errors.New("fake")
		}

		e := echo.New()
		c, resp := httptestutil.Post(
			e, "/initializeAgents", strings.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		if err := handlers.InitializeAgentsHandler(svc)(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusAccepted {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusAccepted, resp.Code)
		}
		actual := executions.Detail{}
		if err := json.Unmarshal(resp.Body.Bytes(), &actual); err != nil {
			t.Fatal(err)
		}
		if actual.ExecutionId != 7 || len(actual.Agents) != 0 {
			t.Errorf("unexpected detail: %+v", actual)
		}
	})

	for name, testcase := range map[string]struct {
		when string
		then int
	}{
		"broken json":          {when: `{"executionId": `, then: http.StatusBadRequest},
		"missing executionId":  {when: `{"replicas": 1}`, then: http.StatusBadRequest},
		"non-positive replica": {when: `{"executionId": 7, "replicas": 0}`, then: http.StatusBadRequest},
	} {
		t.Run("when the request is "+name+", it responds error", func(t *testing.T) {
			svc := mock.New()

			e := echo.New()
			c, _ := httptestutil.Post(
				e, "/initializeAgents", strings.NewReader(testcase.when),
				httptestutil.ContentType("application/json"),
			)
			err := handlers.InitializeAgentsHandler(svc)(c)
			if actual := statusOf(err); actual != testcase.then {
				t.Errorf("status code: (expected, actual) = (%d, %d)", testcase.then, actual)
			}
			if len(svc.Calls.InitializeAgents) != 0 {
				t.Error("InitializeAgents should not be called")
			}
		})
	}

	for name, testcase := range map[string]struct {
		when error
		then int
	}{
		"conflict": {
			when: fmt.Errorf("execution 7: %w", domerr.ErrConflict), then: http.StatusConflict,
		},
		"runner failure": {
			when: runnererrors.NewContainerRunnerError("api server", errors.New("refused")),
			then: http.StatusServiceUnavailable,
		},
	} {
		t.Run("when InitializeAgents causes "+name+", it responds error", func(t *testing.T) {
			svc := mock.New()
			svc.Impl.InitializeAgents = func(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
				return nil, testcase.when
			}

			e := echo.New()
			c, _ := httptestutil.Post(
				e, "/initializeAgents", strings.NewReader(body),
				httptestutil.ContentType("application/json"),
			)
			err := handlers.InitializeAgentsHandler(svc)(c)
			if actual := statusOf(err); actual != testcase.then {
				t.Errorf("status code: (expected, actual) = (%d, %d)", testcase.then, actual)
			}
		})
	}
}

func TestGetExecutionHandler(t *testing.T) {
	t.Run("it responds the detail", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.Detail = func(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
			return &domain.ExecutionDetail{
				Execution: execution(executionId, domain.ExecutionFinished),
				Agents:    []domain.Agent{},
				Tests:     map[domain.TestStatus]int{domain.TestPassed: 3, domain.TestFailed: 1},
			}, nil
		}

		e := echo.New()
		c, resp := httptestutil.Get(e, "/executions/7")
		c.SetParamNames("executionId")
		c.SetParamValues("7")
		if err := handlers.GetExecutionHandler(svc, "executionId")(c); err != nil {
			t.Fatal(err)
		}

		if !cmp.SliceEq(svc.Calls.Detail, []int64{7}) {
			t.Errorf("unexpected calls: %v", svc.Calls.Detail)
		}
		actual := executions.Detail{}
		if err := json.Unmarshal(resp.Body.Bytes(), &actual); err != nil {
			t.Fatal(err)
		}
		if actual.Status != "FINISHED" || actual.Tests["PASSED"] != 3 || actual.Tests["FAILED"] != 1 {
			t.Errorf("unexpected detail: %+v", actual)
		}
	})

	t.Run("when the execution is missing, it responds 404", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.Detail = func(ctx context.Context, executionId int64) (*domain.ExecutionDetail, error) {
			return nil, domerr.ErrMissing
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/executions/7")
		c.SetParamNames("executionId")
		c.SetParamValues("7")
		err := handlers.GetExecutionHandler(svc, "executionId")(c)
		if actual := statusOf(err); actual != http.StatusNotFound {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusNotFound, actual)
		}
	})

	t.Run("when the id is not a number, it responds 404", func(t *testing.T) {
		svc := mock.New()

		e := echo.New()
		c, _ := httptestutil.Get(e, "/executions/latest")
		c.SetParamNames("executionId")
		c.SetParamValues("latest")
		err := handlers.GetExecutionHandler(svc, "executionId")(c)
		if actual := statusOf(err); actual != http.StatusNotFound {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusNotFound, actual)
		}
	})
}

func TestStopAgentsHandler(t *testing.T) {
	for name, testcase := range map[string]bool{
		"all containers are stopped":  true,
		"some containers are running": false,
	} {
		t.Run("when "+name+", it responds it", func(t *testing.T) {
			svc := mock.New()
			svc.Impl.StopAgents = func(ctx context.Context, containerIds []string) (bool, error) {
				return testcase, nil
			}

			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/stopAgents", strings.NewReader(`["save-execution-7-0", "save-execution-7-1"]`),
				httptestutil.ContentType("application/json"),
			)
			if err := handlers.StopAgentsHandler(svc)(c); err != nil {
				t.Fatal(err)
			}

			if len(svc.Calls.StopAgents) != 1 || !cmp.SliceEq(
				svc.Calls.StopAgents[0], []string{"save-execution-7-0", "save-execution-7-1"},
			) {
				t.Errorf("unexpected calls: %v", svc.Calls.StopAgents)
			}
			actual := executions.StopResult{}
			if err := json.Unmarshal(resp.Body.Bytes(), &actual); err != nil {
				t.Fatal(err)
			}
			if actual.Stopped != testcase {
				t.Errorf("stopped: (expected, actual) = (%v, %v)", testcase, actual.Stopped)
			}
		})
	}

	t.Run("when the body is not an array, it responds 400", func(t *testing.T) {
		svc := mock.New()

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/stopAgents", strings.NewReader(`{"containerId": "save-execution-7-0"}`),
			httptestutil.ContentType("application/json"),
		)
		err := handlers.StopAgentsHandler(svc)(c)
		if actual := statusOf(err); actual != http.StatusBadRequest {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusBadRequest, actual)
		}
	})
}

func TestCleanupHandler(t *testing.T) {
	t.Run("it cleans up containers of the execution", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.Cleanup = func(ctx context.Context, executionId int64) error {
			return nil
		}

		e := echo.New()
		c, resp := httptestutil.Post(e, "/cleanup?executionId=7", nil)
		if err := handlers.CleanupHandler(svc)(c); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusOK, resp.Code)
		}
		if !cmp.SliceEq(svc.Calls.Cleanup, []int64{7}) {
			t.Errorf("unexpected calls: %v", svc.Calls.Cleanup)
		}
	})

	for name, testcase := range map[string]string{
		"missing":  "/cleanup",
		"negative": "/cleanup?executionId=-1",
		"broken":   "/cleanup?executionId=seven",
	} {
		t.Run("when executionId is "+name+", it responds 400", func(t *testing.T) {
			svc := mock.New()

			e := echo.New()
			c, _ := httptestutil.Post(e, testcase, nil)
			err := handlers.CleanupHandler(svc)(c)
			if actual := statusOf(err); actual != http.StatusBadRequest {
				t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusBadRequest, actual)
			}
		})
	}

	t.Run("when the execution is missing, it responds 404", func(t *testing.T) {
		svc := mock.New()
		svc.Impl.Cleanup = func(ctx context.Context, executionId int64) error {
			return fmt.Errorf("execution %d: %w", executionId, domerr.ErrMissing)
		}

		e := echo.New()
		c, _ := httptestutil.Post(e, "/cleanup?executionId=7", nil)
		err := handlers.CleanupHandler(svc)(c)
		if actual := statusOf(err); actual != http.StatusNotFound {
			t.Errorf("status code: (expected, actual) = (%d, %d)", http.StatusNotFound, actual)
		}
	})
}
