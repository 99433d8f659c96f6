package heartbeats

import (
	"fmt"

	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

func ParseHeartbeat(hb heartbeats.Heartbeat) (domain.Heartbeat, error) {
	if hb.AgentInfo.ContainerId == "" {
		return domain.Heartbeat{}, fmt.Errorf("agentInfo.containerId is required")
	}
	state, err := domain.AsAgentState(hb.State)
	if err != nil {
		return domain.Heartbeat{}, err
	}
	progress := hb.ExecutionProgress.PercentCompletion
	if progress < 0 || 100 < progress {
		return domain.Heartbeat{}, fmt.Errorf("percentCompletion should be in 0..100: %d", progress)
	}

	return domain.Heartbeat{
		Agent: domain.AgentInfo{
			ContainerId:   hb.AgentInfo.ContainerId,
			ContainerName: hb.AgentInfo.ContainerName,
			Version:       hb.AgentInfo.Version,
		},
		ExecutionId: hb.ExecutionProgress.ExecutionId,
		State:       state,
		Progress:    progress,
		Timestamp:   hb.Timestamp,
	}, nil
}

func ComposeResponse(r domain.HeartbeatReply) (heartbeats.Response, error) {
	cliArgs := r.CliArgs
	if cliArgs == nil {
		cliArgs = []string{}
	}

	switch r.Action {
	case domain.ActionInit:
		return heartbeats.InitResponse{
			Config: heartbeats.AgentConfig{
				CliArgs:                  cliArgs,
				HeartbeatIntervalSeconds: int(r.HeartbeatInterval.Seconds()),
			},
		}, nil
	case domain.ActionNewJob:
		return heartbeats.NewJobResponse{
			Tests:   utils.Map(r.Tests, func(t domain.TestExecution) string { return t.FilePath }),
			CliArgs: cliArgs,
		}, nil
	case domain.ActionContinue:
		return heartbeats.ContinueResponse{}, nil
	case domain.ActionWait:
		return heartbeats.WaitResponse{}, nil
	case domain.ActionTerminate:
		return heartbeats.TerminateResponse{}, nil
	default:
		return nil, fmt.Errorf("unknown heartbeat action: %s", r.Action)
	}
}
