package hook

import (
	"maps"
	"net/http"

	api_executions "github.com/saveourtool/save-cloud/pkg/api/types/executions"
	cfg_hook "github.com/saveourtool/save-cloud/pkg/configs/hook"
)

// AgentEnv is what Before-hooks of initialization can answer.
//
// Env is added to environment variables of agent containers.
// Variables set by the orchestrator itself cannot be overridden.
type AgentEnv struct {
	Env map[string]string `json:"env,omitempty"`
}

func MergeAgentEnv(a, b AgentEnv) AgentEnv {
	env := map[string]string{}
	maps.Copy(env, a.Env)
	maps.Copy(env, b.Env)
	return AgentEnv{Env: env}
}

type Hooks struct {
	// Initialize is called around starting agents.
	//
	// Before: the Execution is PENDING. Failure makes the Execution ERROR without agents.
	//
	// After: the Execution is RUNNING.
	Initialize Hook[api_executions.Detail, AgentEnv]

	// Finishing is called around cleaning up resources of a finished Execution.
	//
	// Failures are logged only.
	Finishing Hook[api_executions.Detail, struct{}]
}

// Noop returns Hooks doing nothing.
func Noop() Hooks {
	return Hooks{
		Initialize: None[api_executions.Detail, AgentEnv]{},
		Finishing:  None[api_executions.Detail, struct{}]{},
	}
}

func Build(cfg cfg_hook.Config, client *http.Client) Hooks {
	return Hooks{
		Initialize: Web[api_executions.Detail, AgentEnv]{
			BeforeURL: cfg.Initialize.Before,
			AfterURL:  cfg.Initialize.After,
			Merge:     MergeAgentEnv,
			Client:    client,
		},
		Finishing: Web[api_executions.Detail, struct{}]{
			BeforeURL: cfg.Finishing.Before,
			AfterURL:  cfg.Finishing.After,
			Client:    client,
		},
	}
}
