package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	dockerclient "github.com/docker/docker/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/saveourtool/save-cloud/pkg/buildtime"
	cfg_hook "github.com/saveourtool/save-cloud/pkg/configs/hook"
	configs "github.com/saveourtool/save-cloud/pkg/configs/orchestrator"
	kpg "github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db/postgres"
	"github.com/saveourtool/save-cloud/pkg/hook"
	"github.com/saveourtool/save-cloud/pkg/kubeutil"
	"github.com/saveourtool/save-cloud/pkg/metrics"
	"github.com/saveourtool/save-cloud/pkg/orchestration"
	"github.com/saveourtool/save-cloud/pkg/runner"
	"github.com/saveourtool/save-cloud/pkg/runner/docker"
	"github.com/saveourtool/save-cloud/pkg/runner/k8s"
	"github.com/saveourtool/save-cloud/pkg/runner/k8s/cluster"
	"github.com/saveourtool/save-cloud/pkg/token"
	"github.com/saveourtool/save-cloud/pkg/utils/filewatch"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("SAVE_ORCHESTRATOR_CONFIG"), "path to config file",
	)
	phooks := flag.String(
		"hooks", os.Getenv("SAVE_HOOK_CONFIG"), "path to lifecycle hook config file (optional)",
	)
	schemaRepo := flag.String("schema-repo", os.Getenv("SAVE_SCHEMA"), "schema repository path")
	kubeconfig := flag.String("kubeconfig", "", "path to kubeconfig, for running outside of the cluster")
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")

	flag.Parse()

	logger := log.Default()
	logger.Printf("save-orchestrator %s", buildtime.VersionString())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	{
		// restart on config changes.
		ctx_, ccan, err := filewatch.UntilModifyContext(ctx, *pconfig, *phooks)
		if err != nil {
			logger.Fatalf("failed to watch config files: %s", err)
		}
		defer ccan()
		ctx = ctx_
	}

	conf, err := configs.LoadOrchestratorConfig(*pconfig)
	if err != nil {
		logger.Fatalf("failed to load config: %s", err)
	}

	hooks := hook.Noop()
	if *phooks != "" {
		hconf, err := cfg_hook.Load(*phooks)
		if err != nil {
			logger.Fatalf("failed to load hook config: %s", err)
		}
		hooks = hook.Build(hconf, &http.Client{Timeout: 30 * time.Second})
	}

	db, err := kpg.New(
		ctx, conf.Database().URL(),
		kpg.WithSchemaRepository(*schemaRepo),
		kpg.WithMaxConns(conf.Database().MaxConns()),
		kpg.WithConnectTimeout(conf.Database().ConnectTimeout()),
	)
	if err != nil {
		logger.Fatalf("failed to connect database: %s", err)
	}
	defer db.Close()
	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	r, err := buildRunner(conf.Runner(), *kubeconfig, byLogger(logger, Copied(), WithPrefix("[runner] ")))
	if err != nil {
		logger.Fatalf("failed to set up %s runner: %s", conf.Runner().Kind(), err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	issuer := token.New(conf.Token().Secret(), conf.Token().TTL())
	agent := conf.Agent()
	serviceAccount := ""
	if kconf := conf.Runner().Kubernetes(); kconf != nil {
		serviceAccount = kconf.ServiceAccount()
	}
	svc := orchestration.New(
		db, r, issuer,
		orchestration.Settings{
			Template: runner.RunConfiguration{
				Image:      agent.Image(),
				Command:    agent.Command(),
				Args:       agent.Args(),
				WorkingDir: agent.WorkingDir(),
				Env:        agent.Env(),
				Resources: runner.Resources{
					Requests: agent.Requests(),
					Limits:   agent.Limits(),
				},
				ServiceAccount:   serviceAccount,
				TTLAfterFinished: agent.TTLAfterFinished(),
			},
			CliArgs:           agent.CliArgs(),
			OrchestratorURL:   agent.OrchestratorURL(),
			BackendURL:        agent.BackendURL(),
			HeartbeatInterval: conf.Heartbeat().Interval(),
			HeartbeatTimeout:  conf.Heartbeat().Timeout(),
			StartupTimeout:    conf.Heartbeat().StartupTimeout(),
			CleanupTimeout:    conf.StopAgents().CleanupTimeout(),
			StopInterval:      conf.StopAgents().Interval(),
			StopTimeout:       conf.StopAgents().Timeout(),
		},
		orchestration.WithHooks(hooks),
		orchestration.WithMetrics(m),
		orchestration.WithLogger(byLogger(logger, Copied(), WithPrefix("[orchestration] "))),
	)

	go func() {
		wlogger := byLogger(logger, Copied(), WithPrefix("[watchdog] "))
		if err := StartWatchdog(ctx, wlogger, svc, conf.Heartbeat().InspectInterval()); err != nil {
			wlogger.Printf("watchdog stopped: %s", err)
		}
	}()

	server := BuildServer(svc, issuer, db.Schema(), m, registry, *loglevel)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		server.Logger.Infof("context has been done: %s, cause: %s", ctx.Err(), context.Cause(ctx))
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("Shutdown with error. %+v", err)
		exit = 1
	}
	if exit != 0 {
		os.Exit(exit)
	}
}

func buildRunner(conf *configs.RunnerConfig, kubeconfig string, logger *log.Logger) (runner.ContainerRunner, error) {
	switch conf.Kind() {
	case configs.RunnerDocker:
		opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
		if host := conf.Docker().Host(); host != "" {
			opts = append(opts, dockerclient.WithHost(host))
		}
		c, err := dockerclient.NewClientWithOpts(opts...)
		if err != nil {
			return nil, err
		}
		return docker.New(c, docker.WithNetwork(conf.Docker().Network()), docker.WithLogger(logger)), nil
	default:
		clientset, err := kubeutil.ConnectToK8s(kubeconfig)
		if err != nil {
			return nil, err
		}
		kconf := conf.Kubernetes()
		return k8s.New(
			cluster.AttachCluster(cluster.WrapK8sClient(clientset), kconf.Namespace()),
			k8s.WithLogger(logger),
			k8s.WithPodLookup(kconf.PodLookupInterval(), kconf.PodLookupAttempts()),
		), nil
	}
}
