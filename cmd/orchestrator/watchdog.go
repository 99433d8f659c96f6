package main

import (
	"context"
	"log"
	"time"

	"github.com/saveourtool/save-cloud/pkg/loop"
	"github.com/saveourtool/save-cloud/pkg/loop/recurring"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// monitor logs each run of task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		defer func() {
			logger.Printf(
				"task #0x%X (takes %s): %s with value = %v",
				counter, time.Since(timestamp), next, ret,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Watchdog returns a task marking agents missing heartbeats as CRASHED.
//
// The value of the task is the total number of crashed agents found so far.
func Watchdog(logger *log.Logger, svc orchestration.Service, interval time.Duration) loop.Task[int] {
	task := recurring.Task[int](func(ctx context.Context, crashed int) (int, bool, error) {
		n, err := svc.InspectHeartbeats(ctx, time.Now())
		if err != nil {
			logger.Printf("failed to inspect heartbeats: %s", err)
			return crashed, false, err
		}
		if 0 < n {
			logger.Printf("%d agents are crashed", n)
		}
		return crashed + n, 0 < n, nil
	})
	return monitor(logger, task.Applied(recurring.Forever(interval)))
}

// StartWatchdog runs the watchdog until ctx is done.
func StartWatchdog(ctx context.Context, logger *log.Logger, svc orchestration.Service, interval time.Duration) error {
	_, err := loop.Start(
		ctx, 0, Watchdog(logger, svc, interval),
		loop.WithTimeout(interval),
	)
	return err
}
