package orchestrator

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/saveourtool/save-cloud/pkg/domain"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/orchestrator.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type OrchestratorConfigMarshall struct {
	Port       int32                     `yaml:"port"`
	Database   *DatabaseConfigMarshall   `yaml:"database"`
	Runner     *RunnerConfigMarshall     `yaml:"runner"`
	Agent      *AgentConfigMarshall      `yaml:"agent"`
	Heartbeat  *HeartbeatConfigMarshall  `yaml:"heartbeat,omitempty"`
	StopAgents *StopAgentsConfigMarshall `yaml:"stopAgents,omitempty"`
	Token      *TokenConfigMarshall      `yaml:"token"`
}

var _ Marshalled[*OrchestratorConfig] = &OrchestratorConfigMarshall{}

func (o *OrchestratorConfigMarshall) trySeal(path string) *OrchestratorConfig {
	port := o.Port
	if port == 0 {
		port = 5100
	}
	hb := o.Heartbeat
	if hb == nil {
		hb = &HeartbeatConfigMarshall{}
	}
	sa := o.StopAgents
	if sa == nil {
		sa = &StopAgentsConfigMarshall{}
	}

	runner := nonnil(o.Runner, path+".runner").trySeal(path + ".runner")
	agent := nonnil(o.Agent, path+".agent").trySeal(path + ".agent")
	if agent.orchestratorUrl == "" {
		k := runner.Kubernetes()
		if k == nil {
			panic(path + ".agent.orchestratorUrl is required")
		}
		agent.orchestratorUrl = k.ServiceURL(port)
	}

	return &OrchestratorConfig{
		port:       port,
		database:   nonnil(o.Database, path+".database").trySeal(path + ".database"),
		runner:     runner,
		agent:      agent,
		heartbeat:  hb.trySeal(path + ".heartbeat"),
		stopAgents: sa.trySeal(path + ".stopAgents"),
		token:      nonnil(o.Token, path+".token").trySeal(path + ".token"),
	}
}

type DatabaseConfigMarshall struct {
	URL            string `yaml:"url"`
	MaxConns       int32  `yaml:"maxConns,omitempty"`
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`
}

func (d *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	return &DatabaseConfig{
		url:            required(d.URL, path+".url"),
		maxConns:       d.MaxConns,
		connectTimeout: duration(d.ConnectTimeout, 10*time.Second, path+".connectTimeout"),
	}
}

type RunnerConfigMarshall struct {
	Kind       string                    `yaml:"kind"`
	Kubernetes *KubernetesConfigMarshall `yaml:"kubernetes,omitempty"`
	Docker     *DockerConfigMarshall     `yaml:"docker,omitempty"`
}

func (r *RunnerConfigMarshall) trySeal(path string) *RunnerConfig {
	switch kind := RunnerKind(required(r.Kind, path+".kind")); kind {
	case RunnerKubernetes:
		return &RunnerConfig{
			kind:       kind,
			kubernetes: nonnil(r.Kubernetes, path+".kubernetes").trySeal(path + ".kubernetes"),
		}
	case RunnerDocker:
		d := r.Docker
		if d == nil {
			d = &DockerConfigMarshall{}
		}
		return &RunnerConfig{kind: kind, docker: d.trySeal(path + ".docker")}
	default:
		panic(fmt.Sprintf(
			`%s.kind should be "%s" or "%s", but "%s"`,
			path, RunnerKubernetes, RunnerDocker, kind,
		))
	}
}

type KubernetesConfigMarshall struct {
	Namespace      string                   `yaml:"namespace"`
	Domain         string                   `yaml:"domain,omitempty"`
	Service        string                   `yaml:"service,omitempty"`
	ServiceAccount string                   `yaml:"serviceAccount,omitempty"`
	PodLookup      *PodLookupConfigMarshall `yaml:"podLookup,omitempty"`
}

type PodLookupConfigMarshall struct {
	Interval string `yaml:"interval,omitempty"`
	Attempts int    `yaml:"attempts,omitempty"`
}

func (k *KubernetesConfigMarshall) trySeal(path string) *KubernetesConfig {
	domain := k.Domain
	if domain == "" {
		domain = "cluster.local"
	}
	service := k.Service
	if service == "" {
		service = "save-orchestrator"
	}
	lookup := k.PodLookup
	if lookup == nil {
		lookup = &PodLookupConfigMarshall{}
	}
	attempts := lookup.Attempts
	if attempts <= 0 {
		attempts = 10
	}
	return &KubernetesConfig{
		namespace:         required(k.Namespace, path+".namespace"),
		domain:            domain,
		service:           service,
		serviceAccount:    k.ServiceAccount,
		podLookupInterval: duration(lookup.Interval, time.Second, path+".podLookup.interval"),
		podLookupAttempts: attempts,
	}
}

type DockerConfigMarshall struct {
	Host    string `yaml:"host,omitempty"`
	Network string `yaml:"network,omitempty"`
}

func (d *DockerConfigMarshall) trySeal(string) *DockerConfig {
	return &DockerConfig{host: d.Host, network: d.Network}
}

type AgentConfigMarshall struct {
	Image            string                   `yaml:"image"`
	Command          []string                 `yaml:"command,omitempty"`
	Args             []string                 `yaml:"args,omitempty"`
	WorkingDir       string                   `yaml:"workingDir,omitempty"`
	Env              map[string]string        `yaml:"env,omitempty"`
	Resources        *ResourcesConfigMarshall `yaml:"resources,omitempty"`
	TTLAfterFinished string                   `yaml:"ttlAfterFinished,omitempty"`
	CliArgs          []string                 `yaml:"cliArgs,omitempty"`
	OrchestratorURL  string                   `yaml:"orchestratorUrl,omitempty"`
	BackendURL       string                   `yaml:"backendUrl"`
	BatchSize        int                      `yaml:"batchSize,omitempty"`
}

type ResourcesConfigMarshall struct {
	Requests map[string]string `yaml:"requests,omitempty"`
	Limits   map[string]string `yaml:"limits,omitempty"`
}

func (a *AgentConfigMarshall) trySeal(path string) *AgentConfig {
	image := required(a.Image, path+".image")
	if _, err := name.ParseReference(image); err != nil {
		panic(fmt.Errorf("%s.image is not an image reference: %w", path, err))
	}

	res := a.Resources
	if res == nil {
		res = &ResourcesConfigMarshall{}
	}
	batchSize := a.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}

	return &AgentConfig{
		image:            image,
		command:          a.Command,
		args:             a.Args,
		workingDir:       a.WorkingDir,
		env:              a.Env,
		requests:         quantities(res.Requests, path+".resources.requests"),
		limits:           quantities(res.Limits, path+".resources.limits"),
		ttlAfterFinished: duration(a.TTLAfterFinished, time.Hour, path+".ttlAfterFinished"),
		cliArgs:          a.CliArgs,
		orchestratorUrl:  strings.TrimSuffix(a.OrchestratorURL, "/"),
		backendUrl:       strings.TrimSuffix(required(a.BackendURL, path+".backendUrl"), "/"),
		batchSize:        batchSize,
	}
}

type HeartbeatConfigMarshall struct {
	Interval        string `yaml:"interval,omitempty"`
	Timeout         string `yaml:"timeout,omitempty"`
	StartupTimeout  string `yaml:"startupTimeout,omitempty"`
	InspectInterval string `yaml:"inspectInterval,omitempty"`
}

func (h *HeartbeatConfigMarshall) trySeal(path string) *HeartbeatConfig {
	interval := duration(h.Interval, 15*time.Second, path+".interval")
	timeout := duration(h.Timeout, 4*interval, path+".timeout")
	if timeout <= interval {
		panic(fmt.Sprintf(
			"%s.timeout (%s) should be longer than %s.interval (%s)",
			path, timeout, path, interval,
		))
	}
	return &HeartbeatConfig{
		interval:        interval,
		timeout:         timeout,
		startupTimeout:  duration(h.StartupTimeout, 5*time.Minute, path+".startupTimeout"),
		inspectInterval: duration(h.InspectInterval, interval, path+".inspectInterval"),
	}
}

type StopAgentsConfigMarshall struct {
	Interval       string `yaml:"interval,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"`
	CleanupTimeout string `yaml:"cleanupTimeout,omitempty"`
}

func (s *StopAgentsConfigMarshall) trySeal(path string) *StopAgentsConfig {
	return &StopAgentsConfig{
		interval:       duration(s.Interval, time.Second, path+".interval"),
		timeout:        duration(s.Timeout, 30*time.Second, path+".timeout"),
		cleanupTimeout: duration(s.CleanupTimeout, time.Minute, path+".cleanupTimeout"),
	}
}

type TokenConfigMarshall struct {
	// base64 encoded HS256 key. Either this or SecretFile is required.
	Secret string `yaml:"secret,omitempty"`

	// file containing raw HS256 key.
	SecretFile string `yaml:"secretFile,omitempty"`

	TTL string `yaml:"ttl,omitempty"`
}

func (t *TokenConfigMarshall) trySeal(path string) *TokenConfig {
	var secret []byte
	switch {
	case t.Secret != "" && t.SecretFile != "":
		panic(fmt.Sprintf("%s.secret and %s.secretFile are exclusive", path, path))
	case t.Secret != "":
		s, err := base64.StdEncoding.DecodeString(t.Secret)
		if err != nil {
			panic(fmt.Errorf("%s.secret is not base64: %w", path, err))
		}
		secret = s
	case t.SecretFile != "":
		s, err := os.ReadFile(t.SecretFile)
		if err != nil {
			panic(fmt.Errorf("%s.secretFile cannot be read: %w", path, err))
		}
		secret = s
	default:
		panic(path + ".secret or " + path + ".secretFile is required")
	}
	if len(secret) < 32 {
		panic(fmt.Sprintf("%s: secret should be 32 bytes or longer", path))
	}

	return &TokenConfig{
		secret: secret,
		ttl:    duration(t.TTL, 24*time.Hour, path+".ttl"),
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

// duration parses s. Empty s means def.
func duration(s string, def time.Duration, path string) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if d <= 0 {
		panic(fmt.Sprintf("%s should be positive: %s", path, s))
	}
	return d
}

func quantities(q map[string]string, path string) map[string]resource.Quantity {
	ret := map[string]resource.Quantity{}
	for k, v := range q {
		parsed, err := resource.ParseQuantity(v)
		if err != nil {
			panic(fmt.Errorf("%s.%s can not be parsed: %w", path, k, err))
		}
		ret[k] = parsed
	}
	return ret
}
