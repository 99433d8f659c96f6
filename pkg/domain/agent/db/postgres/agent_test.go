package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	"github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool/testenv"
	"github.com/saveourtool/save-cloud/pkg/domain"
	kpgagent "github.com/saveourtool/save-cloud/pkg/domain/agent/db/postgres"
	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
	kpgexec "github.com/saveourtool/save-cloud/pkg/domain/execution/db/postgres"
	"github.com/saveourtool/save-cloud/pkg/utils/try"
)

func setupExecution(ctx context.Context, t *testing.T, id int64, paths ...string) kpool.Pool {
	t.Helper()
	pool := testenv.GetPool(ctx, t)
	tests := []domain.TestSource{}
	for _, p := range paths {
		tests = append(tests, domain.TestSource{FilePath: p})
	}
	try.To(kpgexec.New(pool).New(ctx, domain.ExecutionSpec{
		Id: id, Project: "diktat", Sdk: "Java:17", BatchSize: 2, Replicas: 2,
	}, tests)).OrFatal(t)
	return pool
}

func TestAgent_Heartbeat(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("it registers unknown agent", func(t *testing.T) {
		pool := setupExecution(ctx, t, 1)
		testee := kpgagent.New(pool)

		got := try.To(testee.Heartbeat(ctx, domain.Agent{
			AgentInfo:     domain.AgentInfo{ContainerId: "agent-1", ContainerName: "save-agent", Version: "0.3.2"},
			ExecutionId:   1,
			State:         domain.AgentStarting,
			LastHeartbeat: at,
		})).OrFatal(t)

		expected := domain.Agent{
			AgentInfo:     domain.AgentInfo{ContainerId: "agent-1", ContainerName: "save-agent", Version: "0.3.2"},
			ExecutionId:   1,
			State:         domain.AgentStarting,
			LastHeartbeat: at,
		}
		if !got.Equal(expected) {
			t.Errorf("mismatch:\n- actual  : %+v\n- expected: %+v", got, expected)
		}
	})

	t.Run("it keeps final state", func(t *testing.T) {
		pool := setupExecution(ctx, t, 1)
		testee := kpgagent.New(pool)
		if err := testee.Register(ctx, 1, []domain.AgentInfo{{ContainerId: "agent-1"}}, at); err != nil {
			t.Fatal(err)
		}
		try.To(testee.Retire(ctx, "agent-1", domain.AgentCrashed)).OrFatal(t)

		got := try.To(testee.Heartbeat(ctx, domain.Agent{
			AgentInfo:     domain.AgentInfo{ContainerId: "agent-1"},
			ExecutionId:   1,
			State:         domain.AgentBusy,
			Progress:      40,
			LastHeartbeat: at.Add(time.Minute),
		})).OrFatal(t)
		if got.State != domain.AgentCrashed {
			t.Errorf("unexpected state: %s", got.State)
		}
		if !got.LastHeartbeat.Equal(at.Add(time.Minute)) || got.Progress != 40 {
			t.Errorf("heartbeat is not recorded: %+v", got)
		}
	})

	t.Run("it rejects heartbeats for unknown execution", func(t *testing.T) {
		pool := setupExecution(ctx, t, 1)
		testee := kpgagent.New(pool)

		_, err := testee.Heartbeat(ctx, domain.Agent{
			AgentInfo:     domain.AgentInfo{ContainerId: "agent-1"},
			ExecutionId:   2,
			State:         domain.AgentStarting,
			LastHeartbeat: at,
		})
		if !errors.Is(err, domerr.ErrMissing) {
			t.Errorf("expected ErrMissing, but got %v", err)
		}
	})
}

func TestAgent_AssignBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("it dispatches READY tests up to the size, and makes the agent BUSY", func(t *testing.T) {
		pool := setupExecution(ctx, t, 1, "T1", "T2", "T3")
		testee := kpgagent.New(pool)
		if err := testee.Register(ctx, 1, []domain.AgentInfo{{ContainerId: "agent-1"}}, time.Now()); err != nil {
			t.Fatal(err)
		}

		batch := try.To(testee.AssignBatch(ctx, "agent-1", 2)).OrFatal(t)
		if len(batch) != 2 || batch[0].FilePath != "T1" || batch[1].FilePath != "T2" {
			t.Fatalf("unexpected batch: %+v", batch)
		}
		for _, te := range batch {
			if te.Status != domain.TestRunning || te.AgentId != "agent-1" || te.StartTime == nil {
				t.Errorf("unexpected test: %+v", te)
			}
		}
		if a := try.To(testee.Get(ctx, "agent-1")).OrFatal(t); a.State != domain.AgentBusy {
			t.Errorf("unexpected state: %s", a.State)
		}

		rest := try.To(testee.AssignBatch(ctx, "agent-1", 2)).OrFatal(t)
		if len(rest) != 1 || rest[0].FilePath != "T3" {
			t.Errorf("unexpected batch: %+v", rest)
		}
		if empty := try.To(testee.AssignBatch(ctx, "agent-1", 2)).OrFatal(t); len(empty) != 0 {
			t.Errorf("unexpected batch: %+v", empty)
		}
	})

	t.Run("concurrent agents never get the same test", func(t *testing.T) {
		paths := []string{}
		for i := range 40 {
			paths = append(paths, "T"+string(rune('A'+i%26))+string(rune('a'+i/26)))
		}
		pool := setupExecution(ctx, t, 1, paths...)
		testee := kpgagent.New(pool)

		agents := []domain.AgentInfo{}
		for _, id := range []string{"agent-1", "agent-2", "agent-3", "agent-4"} {
			agents = append(agents, domain.AgentInfo{ContainerId: id})
		}
		if err := testee.Register(ctx, 1, agents, time.Now()); err != nil {
			t.Fatal(err)
		}

		mux := sync.Mutex{}
		seen := map[int64]string{}
		wg := sync.WaitGroup{}
		for _, a := range agents {
			wg.Add(1)
			go func(containerId string) {
				defer wg.Done()
				for {
					batch, err := testee.AssignBatch(ctx, containerId, 3)
					if err != nil {
						t.Error(err)
						return
					}
					if len(batch) == 0 {
						return
					}
					mux.Lock()
					for _, te := range batch {
						if other, ok := seen[te.Id]; ok {
							t.Errorf("test %d is dispatched to %s and %s", te.Id, other, containerId)
						}
						seen[te.Id] = containerId
					}
					mux.Unlock()
				}
			}(a.ContainerId)
		}
		wg.Wait()

		if len(seen) != len(paths) {
			t.Errorf("not all tests are dispatched: %d / %d", len(seen), len(paths))
		}
	})

	t.Run("final agent cannot take tests", func(t *testing.T) {
		pool := setupExecution(ctx, t, 1, "T1")
		testee := kpgagent.New(pool)
		if err := testee.Register(ctx, 1, []domain.AgentInfo{{ContainerId: "agent-1"}}, time.Now()); err != nil {
			t.Fatal(err)
		}
		if err := testee.SetState(ctx, "agent-1", domain.AgentTerminated); err != nil {
			t.Fatal(err)
		}
		if _, err := testee.AssignBatch(ctx, "agent-1", 1); !errors.Is(err, domerr.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, but got %v", err)
		}
	})
}

func TestAgent_Retire(t *testing.T) {
	ctx := context.Background()
	pool := setupExecution(ctx, t, 1, "T1", "T2")
	testee := kpgagent.New(pool)
	if err := testee.Register(ctx, 1, []domain.AgentInfo{{ContainerId: "agent-1"}}, time.Now()); err != nil {
		t.Fatal(err)
	}
	try.To(testee.AssignBatch(ctx, "agent-1", 2)).OrFatal(t)

	if _, err := testee.Retire(ctx, "agent-1", domain.AgentIdle); !errors.Is(err, domerr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, but got %v", err)
	}

	released := try.To(testee.Retire(ctx, "agent-1", domain.AgentError)).OrFatal(t)
	if released != 2 {
		t.Errorf("unexpected released count: %d", released)
	}

	if _, err := testee.Retire(ctx, "agent-1", domain.AgentCrashed); !errors.Is(err, domerr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, but got %v", err)
	}
	if _, err := testee.Retire(ctx, "agent-x", domain.AgentCrashed); !errors.Is(err, domerr.ErrMissing) {
		t.Errorf("expected ErrMissing, but got %v", err)
	}
}

func TestAgent_FindStale(t *testing.T) {
	ctx := context.Background()
	pool := setupExecution(ctx, t, 1)
	testee := kpgagent.New(pool)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := testee.Register(ctx, 1, []domain.AgentInfo{
		{ContainerId: "old"}, {ContainerId: "old-but-final"},
	}, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := testee.Register(ctx, 1, []domain.AgentInfo{{ContainerId: "fresh"}}, now); err != nil {
		t.Fatal(err)
	}
	if err := testee.SetState(ctx, "old-but-final", domain.AgentTerminated); err != nil {
		t.Fatal(err)
	}

	stale := try.To(testee.FindStale(ctx, now.Add(-time.Minute))).OrFatal(t)
	if len(stale) != 1 || stale[0].ContainerId != "old" {
		t.Errorf("unexpected stale agents: %+v", stale)
	}
}
