package executions

import (
	"github.com/saveourtool/save-cloud/pkg/api/types/executions"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

// ParseRequest converts a request of /initializeAgents into domain values.
func ParseRequest(req executions.Request) (domain.ExecutionSpec, []domain.TestSource) {
	spec := domain.ExecutionSpec{
		Id:         req.ExecutionId,
		Project:    req.Project,
		Sdk:        req.Sdk,
		TestSuites: req.TestSuites,
		Command:    req.Command,
		BatchSize:  req.BatchSize,
		Replicas:   req.Replicas,
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = domain.DefaultBatchSize
	}
	sources := utils.Map(req.Tests, func(t executions.Test) domain.TestSource {
		return domain.TestSource{FilePath: t.FilePath, TestSuite: t.TestSuite}
	})
	return spec, sources
}

func ComposeSummary(e domain.Execution) executions.Summary {
	suites := e.TestSuites
	if suites == nil {
		suites = []string{}
	}
	return executions.Summary{
		ExecutionId: e.Id,
		Project:     e.Project,
		Sdk:         e.Sdk,
		TestSuites:  suites,
		Status:      string(e.Status),
		Replicas:    e.Replicas,
		BatchSize:   e.BatchSize,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func ComposeAgent(a domain.Agent) executions.Agent {
	return executions.Agent{
		ContainerId:   a.ContainerId,
		ContainerName: a.ContainerName,
		Version:       a.Version,
		State:         string(a.State),
		Progress:      a.Progress,
		LastHeartbeat: a.LastHeartbeat,
	}
}

func ComposeDetail(d domain.ExecutionDetail) executions.Detail {
	tests := map[string]int{}
	for status, n := range d.Tests {
		tests[string(status)] = n
	}
	return executions.Detail{
		Summary: ComposeSummary(d.Execution),
		Agents:  utils.Map(d.Agents, ComposeAgent),
		Tests:   tests,
	}
}
