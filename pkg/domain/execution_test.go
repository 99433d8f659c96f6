package domain_test

import (
	"testing"

	"github.com/saveourtool/save-cloud/pkg/domain"
)

func TestExecutionStatus_CanChangeTo(t *testing.T) {
	all := []domain.ExecutionStatus{
		domain.ExecutionPending, domain.ExecutionRunning,
		domain.ExecutionFinished, domain.ExecutionError,
	}
	allowed := map[domain.ExecutionStatus][]domain.ExecutionStatus{
		domain.ExecutionPending: {domain.ExecutionRunning, domain.ExecutionError},
		domain.ExecutionRunning: {domain.ExecutionFinished, domain.ExecutionError},
	}

	for _, from := range all {
		for _, to := range all {
			expected := false
			for _, a := range allowed[from] {
				if a == to {
					expected = true
				}
			}
			t.Run(from.String()+" -> "+to.String(), func(t *testing.T) {
				if actual := from.CanChangeTo(to); actual != expected {
					t.Errorf("mismatch. (expected, actual) = (%v, %v)", expected, actual)
				}
			})
		}
	}
}

func TestExecutionStatus_Terminal(t *testing.T) {
	for status, expected := range map[domain.ExecutionStatus]bool{
		domain.ExecutionPending:  false,
		domain.ExecutionRunning:  false,
		domain.ExecutionFinished: true,
		domain.ExecutionError:    true,
	} {
		if actual := status.Terminal(); actual != expected {
			t.Errorf("%s: mismatch. (expected, actual) = (%v, %v)", status, expected, actual)
		}
	}
}

func TestAsExecutionStatus(t *testing.T) {
	t.Run("it parses known statuses", func(t *testing.T) {
		for _, s := range []string{"PENDING", "RUNNING", "FINISHED", "ERROR"} {
			actual, err := domain.AsExecutionStatus(s)
			if err != nil {
				t.Fatal(err)
			}
			if actual.String() != s {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", s, actual)
			}
		}
	})

	t.Run("it rejects unknown status", func(t *testing.T) {
		if _, err := domain.AsExecutionStatus("running"); err == nil {
			t.Error("expected error, but not")
		}
	})
}
