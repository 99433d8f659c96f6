package docker

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/saveourtool/save-cloud/pkg/domain/errors/runnererrors"
	"github.com/saveourtool/save-cloud/pkg/runner"
)

// subset of *client.Client of docker SDK
type DockerClient interface {
	ContainerCreate(
		ctx context.Context,
		config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform,
		containerName string,
	) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// EnvContainerName is set to the container name, which save-agent reports as its container id.
const EnvContainerName = runner.EnvContainerId

type dockerRunner struct {
	client  DockerClient
	network string
	logger  *log.Logger
}

var _ runner.ContainerRunner = &dockerRunner{}

type Option func(*dockerRunner)

// WithNetwork makes containers join the docker network.
func WithNetwork(name string) Option {
	return func(r *dockerRunner) {
		r.network = name
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *dockerRunner) {
		r.logger = l
	}
}

// New returns a ContainerRunner running each agent as a docker container.
func New(client DockerClient, options ...Option) runner.ContainerRunner {
	r := &dockerRunner{client: client, logger: log.Default()}
	for _, o := range options {
		o(r)
	}
	return r
}

func ContainerName(executionId int64, nth int) string {
	return fmt.Sprintf("%s-%d", runner.ExecutionResourceName(executionId), nth)
}

func (r *dockerRunner) containerConfig(executionId int64, name string, conf runner.RunConfiguration) (*container.Config, *container.HostConfig) {
	env := []string{}
	for k, v := range conf.Env {
		env = append(env, k+"="+v)
	}
	env = append(env, EnvContainerName+"="+name)
	sort.Strings(env)

	resources := container.Resources{}
	if cpu, ok := conf.Resources.Limits["cpu"]; ok {
		resources.NanoCPUs = cpu.MilliValue() * 1_000_000
	}
	if mem, ok := conf.Resources.Limits["memory"]; ok {
		resources.Memory = mem.Value()
	}
	if mem, ok := conf.Resources.Requests["memory"]; ok {
		resources.MemoryReservation = mem.Value()
	}

	cconf := &container.Config{
		Image:      conf.Image,
		Entrypoint: conf.Command,
		Cmd:        conf.Args,
		WorkingDir: conf.WorkingDir,
		Env:        env,
		Labels:     runner.Labels(executionId),
	}
	hconf := &container.HostConfig{
		Resources:   resources,
		NetworkMode: container.NetworkMode(r.network),
		ExtraHosts:  []string{"host.docker.internal:host-gateway"},
	}
	return cconf, hconf
}

func (r *dockerRunner) CreateAndStart(
	ctx context.Context, executionId int64, conf runner.RunConfiguration, replicas int,
) ([]string, error) {
	if replicas < 1 {
		return nil, fmt.Errorf("replicas should be positive: %d", replicas)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	existing, err := r.find(ctx, executionId)
	if err != nil {
		return nil, runnererrors.NewContainerRunnerError("failed to list containers", err)
	}
	if 0 < len(existing) {
		return nil, runnererrors.NewConflict(
			fmt.Sprintf("execution %d already has %d containers", executionId, len(existing)),
		)
	}

	names := []string{}
	for nth := range replicas {
		name := ContainerName(executionId, nth)
		cconf, hconf := r.containerConfig(executionId, name, conf)
		created, err := r.client.ContainerCreate(ctx, cconf, hconf, nil, nil, name)
		if err == nil {
			err = r.client.ContainerStart(ctx, created.ID, container.StartOptions{})
		}
		if err != nil {
			if cerr := r.CleanupAllByExecution(context.Background(), executionId); cerr != nil {
				r.logger.Printf("execution %d: failed to clean up containers: %s", executionId, cerr)
			}
			if errdefs.IsConflict(err) {
				return nil, runnererrors.NewConflictCausedBy(name, err)
			}
			return nil, runnererrors.NewContainerRunnerError(
				fmt.Sprintf("failed to start container %s", name), err,
			)
		}
		r.logger.Printf("execution %d: container %s (%s) is started", executionId, name, created.ID)
		names = append(names, name)
	}
	return names, nil
}

func (r *dockerRunner) IsStopped(ctx context.Context, containerId string) (bool, error) {
	c, err := r.client.ContainerInspect(ctx, containerId)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return true, nil
		}
		return false, runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to inspect container %s", containerId), err,
		)
	}
	if c.ContainerJSONBase == nil || c.State == nil {
		return true, nil
	}
	return !c.State.Running, nil
}

func (r *dockerRunner) Stop(ctx context.Context, containerId string) error {
	timeout := 0
	if err := r.client.ContainerStop(ctx, containerId, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			r.logger.Printf("container %s is already gone", containerId)
			return nil
		}
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to stop container %s", containerId), err,
		)
	}
	return nil
}

func (r *dockerRunner) find(ctx context.Context, executionId int64) ([]types.Container, error) {
	return r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%d", runner.LabelExecutionId, executionId)),
		),
	})
}

func (r *dockerRunner) CleanupAllByExecution(ctx context.Context, executionId int64) error {
	cs, err := r.find(ctx, executionId)
	if err != nil {
		return runnererrors.NewContainerRunnerError(
			fmt.Sprintf("failed to find containers for execution %d", executionId), err,
		)
	}
	if len(cs) == 0 {
		r.logger.Printf("execution %d: containers are already gone. nothing to clean up", executionId)
		return nil
	}

	for _, c := range cs {
		if err := r.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return runnererrors.NewContainerRunnerError(
				fmt.Sprintf("failed to remove container %s", c.ID), err,
			)
		}
	}
	r.logger.Printf("execution %d: %d containers are removed", executionId, len(cs))
	return nil
}
