package tests

import (
	"fmt"

	"github.com/saveourtool/save-cloud/pkg/api/types/tests"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"github.com/saveourtool/save-cloud/pkg/utils"
)

// ParseResults converts reported results into domain values.
//
// Results with status other than a test result (PASSED, FAILED, IGNORED or TEST_ERROR)
// are rejected.
func ParseResults(rs []tests.Result) ([]domain.TestResult, error) {
	return utils.MapUntilError(rs, func(r tests.Result) (domain.TestResult, error) {
		status, err := domain.AsTestStatus(r.Status)
		if err != nil {
			return domain.TestResult{}, err
		}
		if !status.HasResult() {
			return domain.TestResult{}, fmt.Errorf("%s: status %s is not a result", r.FilePath, status)
		}
		return domain.TestResult{
			FilePath:        r.FilePath,
			Status:          status,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			MissingWarnings: r.MissingWarnings,
			MatchedWarnings: r.MatchedWarnings,
		}, nil
	})
}

func ComposeDetail(t domain.TestExecution) tests.Detail {
	return tests.Detail{
		Id:              t.Id,
		ExecutionId:     t.ExecutionId,
		FilePath:        t.FilePath,
		TestSuite:       t.TestSuite,
		Status:          string(t.Status),
		AgentId:         t.AgentId,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		MissingWarnings: t.MissingWarnings,
		MatchedWarnings: t.MatchedWarnings,
	}
}
