package domain_test

import (
	"testing"
	"time"

	"github.com/saveourtool/save-cloud/pkg/domain"
)

func TestAgentState(t *testing.T) {
	t.Run("every state is either live or final", func(t *testing.T) {
		for _, s := range domain.LiveStates() {
			if s.Final() {
				t.Errorf("%s should not be final", s)
			}
			if parsed, err := domain.AsAgentState(s.String()); err != nil || parsed != s {
				t.Errorf("%s cannot be parsed: (%s, %v)", s, parsed, err)
			}
		}
		for _, s := range domain.FinalStates() {
			if !s.Final() {
				t.Errorf("%s should be final", s)
			}
			if parsed, err := domain.AsAgentState(s.String()); err != nil || parsed != s {
				t.Errorf("%s cannot be parsed: (%s, %v)", s, parsed, err)
			}
		}
		if n := len(domain.LiveStates()) + len(domain.FinalStates()); n != 9 {
			t.Errorf("unexpected number of states: %d", n)
		}
	})

	t.Run("FINISHED is live, only TERMINATED, ERROR and CRASHED are final", func(t *testing.T) {
		if domain.AgentFinished.Final() {
			t.Error("FINISHED agent can take another batch, so it should not be final")
		}
		expected := map[domain.AgentState]bool{
			domain.AgentTerminated: true, domain.AgentError: true, domain.AgentCrashed: true,
		}
		actual := domain.FinalStates()
		if len(actual) != len(expected) {
			t.Fatalf("final states: (expected, actual) = (%d states, %v)", len(expected), actual)
		}
		for _, s := range actual {
			if !expected[s] {
				t.Errorf("%s should not be final", s)
			}
		}
	})

	t.Run("unknown state is rejected", func(t *testing.T) {
		if _, err := domain.AsAgentState("INIT"); err == nil {
			t.Error("expected error, but not")
		}
	})
}

func TestAgent_Stale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Second

	for name, testcase := range map[string]struct {
		when domain.Agent
		then bool
	}{
		"recent heartbeat is not stale": {
			when: domain.Agent{State: domain.AgentBusy, LastHeartbeat: now.Add(-10 * time.Second)},
			then: false,
		},
		"heartbeat just at timeout is not stale": {
			when: domain.Agent{State: domain.AgentBusy, LastHeartbeat: now.Add(-timeout)},
			then: false,
		},
		"old heartbeat is stale": {
			when: domain.Agent{State: domain.AgentIdle, LastHeartbeat: now.Add(-time.Minute)},
			then: true,
		},
		"final agent is never stale": {
			when: domain.Agent{State: domain.AgentTerminated, LastHeartbeat: now.Add(-time.Hour)},
			then: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := testcase.when.Stale(now, timeout); actual != testcase.then {
				t.Errorf("mismatch. (expected, actual) = (%v, %v)", testcase.then, actual)
			}
		})
	}
}

func TestTestStatus_HasResult(t *testing.T) {
	for status, expected := range map[domain.TestStatus]bool{
		domain.TestReady:   false,
		domain.TestRunning: false,
		domain.TestPassed:  true,
		domain.TestFailed:  true,
		domain.TestIgnored: true,
		domain.TestError:   true,
	} {
		if actual := status.HasResult(); actual != expected {
			t.Errorf("%s: mismatch. (expected, actual) = (%v, %v)", status, expected, actual)
		}
		if parsed, err := domain.AsTestStatus(status.String()); err != nil || parsed != status {
			t.Errorf("%s cannot be parsed: (%s, %v)", status, parsed, err)
		}
	}
}
