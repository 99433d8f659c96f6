package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	"github.com/saveourtool/save-cloud/pkg/domain"
	pgerrors "github.com/saveourtool/save-cloud/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/execution/db"
	kpgintr "github.com/saveourtool/save-cloud/pkg/domain/internal/db/postgres"
	xe "github.com/saveourtool/save-cloud/pkg/errors"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

type executionPG struct {
	pool kpool.Pool
}

var _ kdb.ExecutionInterface = &executionPG{}

func New(pool kpool.Pool) kdb.ExecutionInterface {
	return &executionPG{pool: pool}
}

const executionColumns = `"id", "project", "sdk", "test_suites", "command",
	"batch_size", "replicas", "status", "created_at", "updated_at"`

func scanExecution(row pgx.Row) (*domain.Execution, error) {
	e := new(domain.Execution)
	var suites pgtype.TextArray
	var status string
	if err := row.Scan(
		&e.Id, &e.Project, &e.Sdk, &suites, &e.Command,
		&e.BatchSize, &e.Replicas, &status, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := suites.AssignTo(&e.TestSuites); err != nil {
		return nil, err
	}
	s, err := domain.AsExecutionStatus(status)
	if err != nil {
		return nil, err
	}
	e.Status = s
	return e, nil
}

func (m *executionPG) New(ctx context.Context, spec domain.ExecutionSpec, tests []domain.TestSource) (*domain.Execution, error) {
	if spec.TestSuites == nil {
		spec.TestSuites = []string{}
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	e, err := scanExecution(tx.QueryRow(
		ctx,
		`
		insert into "execution"
			("id", "project", "sdk", "test_suites", "command", "batch_size", "replicas", "status")
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict do nothing
		returning `+executionColumns,
		spec.Id, spec.Project, spec.Sdk, spec.TestSuites, spec.Command,
		spec.BatchSize, spec.Replicas, domain.ExecutionPending.String(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xe.Wrap(pgerrors.Conflict{
				Table: "execution", Identity: strconv.FormatInt(spec.Id, 10),
				Reason: "already exists",
			})
		}
		return nil, xe.Wrap(err)
	}

	if 0 < len(tests) {
		if _, err := tx.Exec(
			ctx,
			`
			insert into "test_execution" ("execution_id", "file_path", "test_suite")
			select $1, "file_path", "test_suite"
			from unnest($2::text[], $3::text[]) as "t" ("file_path", "test_suite")
			on conflict do nothing
			`,
			spec.Id,
			utils.Map(tests, func(t domain.TestSource) string { return t.FilePath }),
			utils.Map(tests, func(t domain.TestSource) string { return t.TestSuite }),
		); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, xe.Wrap(err)
	}
	return e, nil
}

func (m *executionPG) Get(ctx context.Context, executionId int64) (*domain.Execution, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	e, err := scanExecution(conn.QueryRow(
		ctx,
		`select `+executionColumns+` from "execution" where "id" = $1`,
		executionId,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xe.Wrap(missingExecution(executionId))
		}
		return nil, xe.Wrap(err)
	}
	return e, nil
}

func missingExecution(executionId int64) error {
	return pgerrors.Missing{Table: "execution", Identity: strconv.FormatInt(executionId, 10)}
}

// lockStatus locks the execution row and returns its status.
func lockStatus(ctx context.Context, tx kpool.Tx, executionId int64) (domain.ExecutionStatus, error) {
	var status string
	if err := tx.QueryRow(
		ctx,
		`select "status" from "execution" where "id" = $1 for update`,
		executionId,
	).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", missingExecution(executionId)
		}
		return "", err
	}
	return domain.AsExecutionStatus(status)
}

func setStatus(ctx context.Context, tx kpool.Tx, executionId int64, status domain.ExecutionStatus) error {
	_, err := tx.Exec(
		ctx,
		`update "execution" set "status" = $2, "updated_at" = now() where "id" = $1`,
		executionId, status.String(),
	)
	return err
}

func (m *executionPG) SetStatus(ctx context.Context, executionId int64, newStatus domain.ExecutionStatus) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	current, err := lockStatus(ctx, tx, executionId)
	if err != nil {
		return xe.Wrap(err)
	}
	if !current.CanChangeTo(newStatus) {
		return xe.Wrap(pgerrors.InvalidTransition{
			Table: "execution", Identity: strconv.FormatInt(executionId, 10),
			From: current.String(), To: newStatus.String(),
		})
	}
	if err := setStatus(ctx, tx, executionId, newStatus); err != nil {
		return xe.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (m *executionPG) FindTests(ctx context.Context, query domain.TestFindQuery) ([]domain.TestExecution, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	statuses := utils.Map(query.Status, domain.TestStatus.String)
	rows, err := conn.Query(
		ctx,
		`
		select `+kpgintr.TestColumns("")+`
		from "test_execution"
		where "execution_id" = $1
			and (cardinality($2::text[]) = 0 or "status" = any($2::text[]))
			and ($3::text = '' or "agent_id" = $3::text)
		order by "id"
		`,
		query.ExecutionId, statuses, query.AgentId,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	tests, err := kpgintr.ScanTests(rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return tests, nil
}

func (m *executionPG) CountTests(ctx context.Context, executionId int64) (map[domain.TestStatus]int, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return countTests(ctx, conn, executionId)
}

func countTests(ctx context.Context, q kpool.Queryer, executionId int64) (map[domain.TestStatus]int, error) {
	rows, err := q.Query(
		ctx,
		`
		select "status", count(*) from "test_execution"
		where "execution_id" = $1
		group by "status"
		`,
		executionId,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ret := map[domain.TestStatus]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, xe.Wrap(err)
		}
		s, err := domain.AsTestStatus(status)
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret[s] = count
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ret, nil
}

func (m *executionPG) SaveResults(ctx context.Context, executionId int64, agentId string, results []domain.TestResult) (int, error) {
	for _, r := range results {
		if !r.Status.HasResult() {
			return 0, xe.Wrap(fmt.Errorf("%s: %s is not a result", r.FilePath, r.Status))
		}
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var owner int64
	if err := tx.QueryRow(
		ctx,
		`select "execution_id" from "agent" where "container_id" = $1 for share`,
		agentId,
	).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, xe.Wrap(pgerrors.Missing{Table: "agent", Identity: agentId})
		}
		return 0, xe.Wrap(err)
	}
	if owner != executionId {
		return 0, xe.Wrap(pgerrors.Conflict{
			Table: "agent", Identity: agentId,
			Reason: fmt.Sprintf("belongs to execution %d, not %d", owner, executionId),
		})
	}

	for _, r := range results {
		ct, err := tx.Exec(
			ctx,
			`
			update "test_execution"
			set
				"status" = $4,
				"start_time" = $5,
				"end_time" = $6,
				"missing_warnings" = $7,
				"matched_warnings" = $8
			where "execution_id" = $1
				and "file_path" = $2
				and "agent_id" = $3
				and "status" = $9
			`,
			executionId, r.FilePath, agentId,
			r.Status.String(), r.StartTime, r.EndTime,
			r.MissingWarnings, r.MatchedWarnings,
			domain.TestRunning.String(),
		)
		if err != nil {
			return 0, xe.Wrap(err)
		}
		if ct.RowsAffected() == 0 {
			return 0, xe.Wrap(pgerrors.Conflict{
				Table: "test_execution", Identity: r.FilePath,
				Reason: fmt.Sprintf("not running on agent %s", agentId),
			})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, xe.Wrap(err)
	}
	return len(results), nil
}

func (m *executionPG) Finalize(ctx context.Context, executionId int64, startedBefore time.Time) (domain.ExecutionStatus, bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return "", false, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	current, err := lockStatus(ctx, tx, executionId)
	if err != nil {
		return "", false, xe.Wrap(err)
	}
	if current != domain.ExecutionRunning {
		return current, false, nil
	}

	var live, registered, replicas int
	var startedAt time.Time
	if err := tx.QueryRow(
		ctx,
		`
		select
			count("a"."container_id") filter (where not ("a"."state" = any($2::text[]))),
			count("a"."container_id"),
			"e"."replicas",
			"e"."updated_at"
		from "execution" as "e"
			left join "agent" as "a" on "a"."execution_id" = "e"."id"
		where "e"."id" = $1
		group by "e"."id"
		`,
		executionId, utils.Map(domain.FinalStates(), domain.AgentState.String),
	).Scan(&live, &registered, &replicas, &startedAt); err != nil {
		return "", false, xe.Wrap(err)
	}
	if 0 < live {
		return current, false, nil
	}
	if registered < replicas && !startedAt.Before(startedBefore) {
		return current, false, nil
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "test_execution"
		set "status" = $2, "agent_id" = null, "start_time" = null
		where "execution_id" = $1 and "status" = $3
		`,
		executionId, domain.TestReady.String(), domain.TestRunning.String(),
	); err != nil {
		return "", false, xe.Wrap(err)
	}

	counts, err := countTests(ctx, tx, executionId)
	if err != nil {
		return "", false, err
	}
	next := domain.ExecutionFinished
	if 0 < counts[domain.TestReady] {
		next = domain.ExecutionError
	}
	if err := setStatus(ctx, tx, executionId, next); err != nil {
		return "", false, xe.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, xe.Wrap(err)
	}
	return next, true, nil
}

func (m *executionPG) FindAwaitingAgents(ctx context.Context, startedBefore time.Time) ([]int64, error) {
	return m.findIds(
		ctx,
		`
		select "e"."id" from "execution" as "e"
		where "e"."status" = $1 and "e"."updated_at" < $2
			and (select count(*) from "agent" as "a" where "a"."execution_id" = "e"."id") < "e"."replicas"
		order by "e"."id"
		`,
		domain.ExecutionRunning.String(), startedBefore,
	)
}

func (m *executionPG) FindUncleaned(ctx context.Context, finishedBefore time.Time) ([]int64, error) {
	return m.findIds(
		ctx,
		`
		select "id" from "execution"
		where "status" = any($1::text[]) and not "cleaned_up" and "updated_at" < $2
		order by "id"
		`,
		[]string{domain.ExecutionFinished.String(), domain.ExecutionError.String()},
		finishedBefore,
	)
}

func (m *executionPG) findIds(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, xe.Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return ids, nil
}

func (m *executionPG) MarkCleanedUp(ctx context.Context, executionId int64) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ct, err := conn.Exec(
		ctx,
		`update "execution" set "cleaned_up" = true where "id" = $1`,
		executionId,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return xe.Wrap(missingExecution(executionId))
	}
	return nil
}
