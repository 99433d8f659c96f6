package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/saveourtool/save-cloud/pkg/agent"
	"github.com/saveourtool/save-cloud/pkg/agent/client"
	"github.com/saveourtool/save-cloud/pkg/agent/savecli"
	"github.com/saveourtool/save-cloud/pkg/api/types/heartbeats"
	"github.com/saveourtool/save-cloud/pkg/buildtime"
	kos "github.com/saveourtool/save-cloud/pkg/utils/os"
	"github.com/saveourtool/save-cloud/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Orchestrator string `flag:"orchestrator" help:"URL of the orchestrator. (envvar: SAVE_ORCHESTRATOR_URL)"`
	Token        string `flag:"token" help:"bearer token for the orchestrator. (envvar: SAVE_AGENT_TOKEN)"`
	ExecutionId  int    `flag:"execution-id" help:"id of the execution this agent works for. (envvar: SAVE_EXECUTION_ID)"`
	Name         string `flag:"name" help:"name of this agent, reported as its container id. (envvar: POD_NAME)"`

	Cli     string `flag:"cli" help:"save-cli command line, separated by spaces. (envvar: SAVE_CLI)"`
	WorkDir string `flag:"workdir" help:"directory where save-cli runs. (envvar: SAVE_WORKDIR)"`

	Interval    time.Duration `flag:"interval" help:"heartbeat interval until the orchestrator tells. (envvar: SAVE_HEARTBEAT_INTERVAL)"`
	MaxFailures int           `flag:"max-failures" help:"exit after this many heartbeat failures in a row. (envvar: SAVE_MAX_FAILURES)"`
}

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()
	logger := log.Default()
	logger.SetPrefix("[save-agent] ")

	cmd := try.To(
		flarc.NewCommand(
			"save-agent "+buildtime.VersionString()+": run tests dispatched by the orchestrator",
			Flag{
				Orchestrator: os.Getenv("SAVE_ORCHESTRATOR_URL"),
				Token:        os.Getenv("SAVE_AGENT_TOKEN"),
				ExecutionId:  kos.GetEnvIntOr("SAVE_EXECUTION_ID", 0),
				Name:         os.Getenv("POD_NAME"),
				Cli:          kos.GetEnvOr("SAVE_CLI", "save"),
				WorkDir:      kos.GetEnvOr("SAVE_WORKDIR", "."),
				Interval:     kos.GetEnvDurationOr("SAVE_HEARTBEAT_INTERVAL", 15*time.Second),
				MaxFailures:  kos.GetEnvIntOr("SAVE_MAX_FAILURES", 5),
			},
			flarc.Args{},
			func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
				return run(ctx, logger, c.Flags())
			},
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}

func run(ctx context.Context, logger *log.Logger, flags Flag) error {
	missing := []string{}
	if flags.Orchestrator == "" {
		missing = append(missing, "--orchestrator")
	}
	if flags.Token == "" {
		missing = append(missing, "--token")
	}
	if flags.ExecutionId <= 0 {
		missing = append(missing, "--execution-id")
	}
	if flags.Name == "" {
		missing = append(missing, "--name")
	}
	if 0 < len(missing) {
		return fmt.Errorf("%w: required flags: %s", flarc.ErrUsage, strings.Join(missing, ", "))
	}

	c, err := client.New(flags.Orchestrator, flags.Token)
	if err != nil {
		return errors.Join(flarc.ErrUsage, err)
	}
	cli, err := savecli.New(strings.Fields(flags.Cli), flags.WorkDir)
	if err != nil {
		return errors.Join(flarc.ErrUsage, err)
	}

	a := agent.New(
		agent.Config{
			Info: heartbeats.AgentInfo{
				ContainerId:   flags.Name,
				ContainerName: flags.Name,
				Version:       buildtime.Version(),
			},
			ExecutionId:       int64(flags.ExecutionId),
			HeartbeatInterval: flags.Interval,
			MaxFailures:       flags.MaxFailures,
		},
		c, cli,
		agent.WithLogger(logger),
	)

	logger.Printf("agent %s starts for execution %d", flags.Name, flags.ExecutionId)
	status, err := a.Run(ctx)
	if err != nil {
		logger.Printf("agent stopped in %s: %s", status.State(), err)
		return err
	}
	logger.Printf("agent is terminated in %s", status.State())
	return nil
}
