package postgres

import (
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/saveourtool/save-cloud/pkg/domain"
)

var testColumns = []string{
	"id", "execution_id", "file_path", "test_suite", "status", "agent_id",
	"start_time", "end_time", "missing_warnings", "matched_warnings",
}

// TestColumns lists columns of "test_execution" in the order ScanTests expects.
//
// When alias is not empty, columns are qualified with it.
func TestColumns(alias string) string {
	cols := make([]string, len(testColumns))
	for nth, c := range testColumns {
		if alias == "" {
			cols[nth] = `"` + c + `"`
		} else {
			cols[nth] = `"` + alias + `"."` + c + `"`
		}
	}
	return strings.Join(cols, ", ")
}

// ScanTests reads rows selecting TestColumns.
func ScanTests(rows pgx.Rows) ([]domain.TestExecution, error) {
	defer rows.Close()

	ret := []domain.TestExecution{}
	for rows.Next() {
		var te domain.TestExecution
		var status string
		var agentId pgtype.Text
		var start, end pgtype.Timestamptz
		if err := rows.Scan(
			&te.Id, &te.ExecutionId, &te.FilePath, &te.TestSuite, &status, &agentId,
			&start, &end, &te.MissingWarnings, &te.MatchedWarnings,
		); err != nil {
			return nil, err
		}

		s, err := domain.AsTestStatus(status)
		if err != nil {
			return nil, err
		}
		te.Status = s
		if agentId.Status == pgtype.Present {
			te.AgentId = agentId.String
		}
		te.StartTime = nullableTime(start)
		te.EndTime = nullableTime(end)

		ret = append(ret, te)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func nullableTime(t pgtype.Timestamptz) *time.Time {
	if t.Status != pgtype.Present {
		return nil
	}
	v := t.Time
	return &v
}
