package postgres

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	"github.com/saveourtool/save-cloud/pkg/domain"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/agent/db"
	pgerrors "github.com/saveourtool/save-cloud/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/saveourtool/save-cloud/pkg/domain/internal/db/postgres"
	xe "github.com/saveourtool/save-cloud/pkg/errors"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

type agentPG struct {
	pool kpool.Pool
}

var _ kdb.AgentInterface = &agentPG{}

func New(pool kpool.Pool) kdb.AgentInterface {
	return &agentPG{pool: pool}
}

const agentColumns = `"container_id", "container_name", "execution_id", "version",
	"state", "progress", "last_heartbeat"`

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	a := new(domain.Agent)
	var state string
	if err := row.Scan(
		&a.ContainerId, &a.ContainerName, &a.ExecutionId, &a.Version,
		&state, &a.Progress, &a.LastHeartbeat,
	); err != nil {
		return nil, err
	}
	s, err := domain.AsAgentState(state)
	if err != nil {
		return nil, err
	}
	a.State = s
	return a, nil
}

func scanAgents(rows pgx.Rows) ([]domain.Agent, error) {
	defer rows.Close()
	ret := []domain.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func finalStates() []string {
	return utils.Map(domain.FinalStates(), domain.AgentState.String)
}

// executionMissing converts foreign key violation on "execution_id" into Missing.
func executionMissing(err error, executionId int64) error {
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.ForeignKeyViolation {
		return pgerrors.Missing{Table: "execution", Identity: strconv.FormatInt(executionId, 10)}
	}
	return err
}

func (m *agentPG) Register(ctx context.Context, executionId int64, agents []domain.AgentInfo, at time.Time) error {
	if len(agents) == 0 {
		return nil
	}
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(
		ctx,
		`
		insert into "agent"
			("container_id", "container_name", "execution_id", "version", "state", "progress", "last_heartbeat")
		select "container_id", "container_name", $1, "version", $4, 0, $5
		from unnest($2::text[], $3::text[], $6::text[]) as "a" ("container_id", "container_name", "version")
		on conflict do nothing
		`,
		executionId,
		utils.Map(agents, func(a domain.AgentInfo) string { return a.ContainerId }),
		utils.Map(agents, func(a domain.AgentInfo) string { return a.ContainerName }),
		domain.AgentStarting.String(),
		at,
		utils.Map(agents, func(a domain.AgentInfo) string { return a.Version }),
	); err != nil {
		return xe.Wrap(executionMissing(err, executionId))
	}
	return nil
}

func (m *agentPG) Heartbeat(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	a, err := scanAgent(conn.QueryRow(
		ctx,
		`
		insert into "agent" as "a"
			("container_id", "container_name", "execution_id", "version", "state", "progress", "last_heartbeat")
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict ("container_id") do update set
			"container_name" = coalesce(nullif(excluded."container_name", ''), "a"."container_name"),
			"version" = coalesce(nullif(excluded."version", ''), "a"."version"),
			"state" = case
				when "a"."state" = any($8::text[]) then "a"."state"
				else excluded."state"
			end,
			"progress" = excluded."progress",
			"last_heartbeat" = excluded."last_heartbeat"
		returning `+agentColumns,
		agent.ContainerId, agent.ContainerName, agent.ExecutionId, agent.Version,
		agent.State.String(), agent.Progress, agent.LastHeartbeat,
		finalStates(),
	))
	if err != nil {
		return nil, xe.Wrap(executionMissing(err, agent.ExecutionId))
	}
	return a, nil
}

func (m *agentPG) Get(ctx context.Context, containerId string) (*domain.Agent, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	a, err := scanAgent(conn.QueryRow(
		ctx,
		`select `+agentColumns+` from "agent" where "container_id" = $1`,
		containerId,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xe.Wrap(pgerrors.Missing{Table: "agent", Identity: containerId})
		}
		return nil, xe.Wrap(err)
	}
	return a, nil
}

func (m *agentPG) ListByExecution(ctx context.Context, executionId int64) ([]domain.Agent, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`select `+agentColumns+` from "agent" where "execution_id" = $1 order by "container_id"`,
		executionId,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	agents, err := scanAgents(rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return agents, nil
}

// lockAgent locks the agent row and returns its execution and state.
func lockAgent(ctx context.Context, tx kpool.Tx, containerId string) (int64, domain.AgentState, error) {
	var executionId int64
	var state string
	if err := tx.QueryRow(
		ctx,
		`select "execution_id", "state" from "agent" where "container_id" = $1 for update`,
		containerId,
	).Scan(&executionId, &state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", pgerrors.Missing{Table: "agent", Identity: containerId}
		}
		return 0, "", err
	}
	s, err := domain.AsAgentState(state)
	if err != nil {
		return 0, "", err
	}
	return executionId, s, nil
}

func updateState(ctx context.Context, tx kpool.Tx, containerId string, state domain.AgentState) error {
	_, err := tx.Exec(
		ctx,
		`update "agent" set "state" = $2 where "container_id" = $1`,
		containerId, state.String(),
	)
	return err
}

func (m *agentPG) SetState(ctx context.Context, containerId string, newState domain.AgentState) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	_, current, err := lockAgent(ctx, tx, containerId)
	if err != nil {
		return xe.Wrap(err)
	}
	if current.Final() && current != newState {
		return xe.Wrap(pgerrors.InvalidTransition{
			Table: "agent", Identity: containerId,
			From: current.String(), To: newState.String(),
		})
	}
	if err := updateState(ctx, tx, containerId, newState); err != nil {
		return xe.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (m *agentPG) FindStale(ctx context.Context, before time.Time) ([]domain.Agent, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := conn.Query(
		ctx,
		`
		select `+agentColumns+` from "agent"
		where not ("state" = any($1::text[])) and "last_heartbeat" < $2
		order by "last_heartbeat"
		`,
		finalStates(), before,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	agents, err := scanAgents(rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return agents, nil
}

func (m *agentPG) AssignBatch(ctx context.Context, containerId string, size int) ([]domain.TestExecution, error) {
	if size <= 0 {
		size = domain.DefaultBatchSize
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	executionId, current, err := lockAgent(ctx, tx, containerId)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if current.Final() {
		return nil, xe.Wrap(pgerrors.InvalidTransition{
			Table: "agent", Identity: containerId,
			From: current.String(), To: domain.AgentBusy.String(),
		})
	}

	rows, err := tx.Query(
		ctx,
		`
		with "picked" as (
			select "id" from "test_execution"
			where "execution_id" = $1 and "status" = $4
			order by "id"
			limit $3
			for update skip locked
		)
		update "test_execution" as "t"
		set "status" = $5, "agent_id" = $2, "start_time" = now(), "end_time" = null
		from "picked"
		where "t"."id" = "picked"."id"
		returning `+kpgintr.TestColumns("t"),
		executionId, containerId, size,
		domain.TestReady.String(), domain.TestRunning.String(),
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	tests, err := kpgintr.ScanTests(rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if len(tests) == 0 {
		return tests, nil
	}

	if err := updateState(ctx, tx, containerId, domain.AgentBusy); err != nil {
		return nil, xe.Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, xe.Wrap(err)
	}

	slices.SortFunc(tests, func(a, b domain.TestExecution) int { return cmp.Compare(a.Id, b.Id) })
	return tests, nil
}

func (m *agentPG) Retire(ctx context.Context, containerId string, newState domain.AgentState) (int, error) {
	if !newState.Final() {
		return 0, xe.Wrap(pgerrors.InvalidTransition{
			Table: "agent", Identity: containerId, From: "(any)", To: newState.String(),
		})
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	_, current, err := lockAgent(ctx, tx, containerId)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	if current.Final() && current != newState {
		return 0, xe.Wrap(pgerrors.InvalidTransition{
			Table: "agent", Identity: containerId,
			From: current.String(), To: newState.String(),
		})
	}
	if err := updateState(ctx, tx, containerId, newState); err != nil {
		return 0, xe.Wrap(err)
	}

	ct, err := tx.Exec(
		ctx,
		`
		update "test_execution"
		set "status" = $2, "agent_id" = null, "start_time" = null
		where "agent_id" = $1 and "status" = $3
		`,
		containerId, domain.TestReady.String(), domain.TestRunning.String(),
	)
	if err != nil {
		return 0, xe.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, xe.Wrap(err)
	}
	return int(ct.RowsAffected()), nil
}
