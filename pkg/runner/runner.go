package runner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ContainerRunner starts and stops containers running save-agent.
//
// Implementations are Kubernetes (a Job per Execution) and docker (a bare container per agent).
type ContainerRunner interface {
	// CreateAndStart starts `replicas` agents for the execution.
	//
	// # Returns
	//
	// - []string: container ids (k8s: pod names) which are observed to be created.
	// It can be fewer than replicas when containers are slow to be scheduled.
	//
	// - error: runnererrors.ErrConflict if containers for the execution exist,
	// runnererrors.ErrContainerRunner if the container platform fails.
	CreateAndStart(ctx context.Context, executionId int64, conf RunConfiguration, replicas int) ([]string, error)

	// IsStopped reports whether the container is gone or has no running container in it.
	IsStopped(ctx context.Context, containerId string) (bool, error)

	// Stop requests to stop the container. Stopping a missing container is not an error.
	Stop(ctx context.Context, containerId string) error

	// CleanupAllByExecution removes all resources of the execution.
	//
	// Cleaning up an execution having no resources is a no-op.
	CleanupAllByExecution(ctx context.Context, executionId int64) error
}

const (
	LabelName        = "app.kubernetes.io/name"
	LabelComponent   = "app.kubernetes.io/component"
	LabelManagedBy   = "app.kubernetes.io/managed-by"
	LabelExecutionId = "save-cloud/execution-id"

	AgentName      = "save-agent"
	AgentComponent = "agent"
	ManagedBy      = "save-orchestrator"
)

// Environment variables given to agents.
const (
	EnvExecutionId     = "SAVE_EXECUTION_ID"
	EnvOrchestratorURL = "SAVE_ORCHESTRATOR_URL"
	EnvBackendURL      = "SAVE_BACKEND_URL"
	EnvAgentToken      = "SAVE_AGENT_TOKEN"

	// pod name (k8s) or container name (docker). Agents report it as their container id.
	EnvContainerId = "POD_NAME"
)

// Labels returns labels put on all resources of the execution.
func Labels(executionId int64) map[string]string {
	return map[string]string{
		LabelName:        AgentName,
		LabelComponent:   AgentComponent,
		LabelManagedBy:   ManagedBy,
		LabelExecutionId: strconv.FormatInt(executionId, 10),
	}
}

// ExecutionResourceName is a name of k8s Job (or prefix of docker containers) for the execution.
func ExecutionResourceName(executionId int64) string {
	return fmt.Sprintf("save-execution-%d", executionId)
}

type Resources struct {
	// keys are "cpu" and "memory"
	Requests map[string]resource.Quantity
	Limits   map[string]resource.Quantity
}

// RunConfiguration describes agent containers.
type RunConfiguration struct {
	Image      string
	Command    []string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Resources  Resources

	// k8s only. empty means the default service account.
	ServiceAccount string

	// k8s only. Finished Jobs are removed after this. zero means "never".
	TTLAfterFinished time.Duration
}

// Validate checks the configuration before sending it to the container platform.
func (rc RunConfiguration) Validate() error {
	if rc.Image == "" {
		return fmt.Errorf("image is required")
	}
	if _, err := name.ParseReference(rc.Image); err != nil {
		return fmt.Errorf("image %s is not valid: %w", rc.Image, err)
	}
	for _, rs := range []map[string]resource.Quantity{rc.Resources.Requests, rc.Resources.Limits} {
		for k := range rs {
			if k != "cpu" && k != "memory" {
				return fmt.Errorf("unsupported resource: %s", k)
			}
		}
	}
	return nil
}
