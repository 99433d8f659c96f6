package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saveourtool/save-cloud/pkg/loop"
	"github.com/saveourtool/save-cloud/pkg/loop/recurring"
)

func TestForever_Next(t *testing.T) {
	for name, testcase := range map[string]struct {
		busy bool
		err  error
		then loop.Next
	}{
		"busy":  {busy: true, then: loop.Continue(0)},
		"idle":  {busy: false, then: loop.Continue(time.Second)},
		"error": {busy: true, err: errors.New("fake"), then: loop.Continue(time.Second)},
	} {
		t.Run(name, func(t *testing.T) {
			actual := recurring.Forever(time.Second).Next(testcase.busy, testcase.err)
			if actual.String() != testcase.then.String() {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", testcase.then, actual)
			}
		})
	}
}

func TestTask_Applied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	task := recurring.Task[int](func(_ context.Context, v int) (int, bool, error) {
		cycles += 1
		if 3 <= cycles {
			cancel()
		}
		return v + 1, true, nil
	})

	before := time.Now()
	actual, err := loop.Start(ctx, 0, task.Applied(recurring.Forever(time.Hour)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
	if actual != 3 || cycles != 3 {
		t.Errorf("mismatch. (expected, actual) = (%d, %d) (cycles = %d)", 3, actual, cycles)
	}
	if time.Minute < time.Since(before) {
		t.Error("busy cycles should not wait cooldown")
	}
}
