package heartbeats_test

import (
	"testing"
	"time"

	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	bindhb "github.com/saveourtool/save-cloud/pkg/api-types-binding/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/utils/cmp"
)

func TestParseHeartbeat(t *testing.T) {
	valid := func() heartbeats.Heartbeat {
		return heartbeats.Heartbeat{
			AgentInfo:         heartbeats.AgentInfo{ContainerId: "pod-1", ContainerName: "save-execution-3-abcde", Version: "0.3.2"},
			State:             "IDLE",
			ExecutionProgress: heartbeats.ExecutionProgress{ExecutionId: 3, PercentCompletion: 50},
			Timestamp:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	t.Run("valid heartbeat", func(t *testing.T) {
		actual, err := bindhb.ParseHeartbeat(valid())
		if err != nil {
			t.Fatal(err)
		}
		if actual.State != domain.AgentIdle || actual.ExecutionId != 3 || actual.Progress != 50 {
			t.Errorf("unexpected heartbeat: %+v", actual)
		}
		if actual.Agent.ContainerName != "save-execution-3-abcde" {
			t.Errorf("unexpected agent: %+v", actual.Agent)
		}
	})

	for name, broken := range map[string]func(*heartbeats.Heartbeat){
		"unknown state":     func(h *heartbeats.Heartbeat) { h.State = "SLEEPING" },
		"no container id":   func(h *heartbeats.Heartbeat) { h.AgentInfo.ContainerId = "" },
		"progress over 100": func(h *heartbeats.Heartbeat) { h.ExecutionProgress.PercentCompletion = 101 },
		"negative progress": func(h *heartbeats.Heartbeat) { h.ExecutionProgress.PercentCompletion = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			hb := valid()
			broken(&hb)
			if _, err := bindhb.ParseHeartbeat(hb); err == nil {
				t.Error("expected error, but got nil")
			}
		})
	}
}

func TestComposeResponse(t *testing.T) {
	t.Run("NewJob has file paths", func(t *testing.T) {
		actual, err := bindhb.ComposeResponse(domain.HeartbeatReply{
			Action:  domain.ActionNewJob,
			Tests:   []domain.TestExecution{{Id: 1, FilePath: "a/Test1.kt"}, {Id: 2, FilePath: "a/Test2.kt"}},
			CliArgs: []string{"--log", "all"},
		})
		if err != nil {
			t.Fatal(err)
		}
		job, ok := actual.(heartbeats.NewJobResponse)
		if !ok {
			t.Fatalf("unexpected response: %#v", actual)
		}
		if !cmp.SliceEq(job.Tests, []string{"a/Test1.kt", "a/Test2.kt"}) {
			t.Errorf("unexpected tests: %v", job.Tests)
		}
		if !cmp.SliceEq(job.CliArgs, []string{"--log", "all"}) {
			t.Errorf("unexpected args: %v", job.CliArgs)
		}
	})

	t.Run("Init has config", func(t *testing.T) {
		actual, err := bindhb.ComposeResponse(domain.HeartbeatReply{
			Action: domain.ActionInit, HeartbeatInterval: 15 * time.Second,
		})
		if err != nil {
			t.Fatal(err)
		}
		init, ok := actual.(heartbeats.InitResponse)
		if !ok {
			t.Fatalf("unexpected response: %#v", actual)
		}
		if init.Config.HeartbeatIntervalSeconds != 15 || init.Config.CliArgs == nil {
			t.Errorf("unexpected config: %+v", init.Config)
		}
	})

	for action, expected := range map[domain.HeartbeatAction]heartbeats.ResponseType{
		domain.ActionContinue:  heartbeats.TypeContinue,
		domain.ActionWait:      heartbeats.TypeWait,
		domain.ActionTerminate: heartbeats.TypeTerminate,
	} {
		t.Run(string(action), func(t *testing.T) {
			actual, err := bindhb.ComposeResponse(domain.HeartbeatReply{Action: action})
			if err != nil {
				t.Fatal(err)
			}
			if actual.Type() != expected {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", expected, actual.Type())
			}
		})
	}

	t.Run("unknown action is an error", func(t *testing.T) {
		if _, err := bindhb.ComposeResponse(domain.HeartbeatReply{Action: "Sleep"}); err == nil {
			t.Error("expected error, but got nil")
		}
	})
}
