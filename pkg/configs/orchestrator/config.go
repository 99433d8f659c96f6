package orchestrator

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

type RunnerKind string

const (
	RunnerKubernetes RunnerKind = "kubernetes"
	RunnerDocker     RunnerKind = "docker"
)

// Configuration of the orchestrator.
//
// To get OrchestratorConfig, use `TrySeal(*OrchestratorConfigMarshall)`.
type OrchestratorConfig struct {
	port       int32
	database   *DatabaseConfig
	runner     *RunnerConfig
	agent      *AgentConfig
	heartbeat  *HeartbeatConfig
	stopAgents *StopAgentsConfig
	token      *TokenConfig
}

func (c *OrchestratorConfig) Port() int32 {
	return c.port
}

func (c *OrchestratorConfig) Database() *DatabaseConfig {
	return c.database
}

func (c *OrchestratorConfig) Runner() *RunnerConfig {
	return c.runner
}

func (c *OrchestratorConfig) Agent() *AgentConfig {
	return c.agent
}

func (c *OrchestratorConfig) Heartbeat() *HeartbeatConfig {
	return c.heartbeat
}

func (c *OrchestratorConfig) StopAgents() *StopAgentsConfig {
	return c.stopAgents
}

func (c *OrchestratorConfig) Token() *TokenConfig {
	return c.token
}

type DatabaseConfig struct {
	url            string
	maxConns       int32
	connectTimeout time.Duration
}

// Connection string for postgres.
func (d *DatabaseConfig) URL() string {
	return d.url
}

// 0 means the default of pgxpool.
func (d *DatabaseConfig) MaxConns() int32 {
	return d.maxConns
}

func (d *DatabaseConfig) ConnectTimeout() time.Duration {
	return d.connectTimeout
}

type RunnerConfig struct {
	kind       RunnerKind
	kubernetes *KubernetesConfig
	docker     *DockerConfig
}

func (r *RunnerConfig) Kind() RunnerKind {
	return r.kind
}

// non-nil iff Kind is RunnerKubernetes
func (r *RunnerConfig) Kubernetes() *KubernetesConfig {
	return r.kubernetes
}

// non-nil iff Kind is RunnerDocker
func (r *RunnerConfig) Docker() *DockerConfig {
	return r.docker
}

type KubernetesConfig struct {
	namespace         string
	domain            string
	service           string
	serviceAccount    string
	podLookupInterval time.Duration
	podLookupAttempts int
}

// k8s namespace where agents are started.
func (k *KubernetesConfig) Namespace() string {
	return k.namespace
}

// k8s cluster domain. default = "cluster.local"
func (k *KubernetesConfig) Domain() string {
	return k.domain
}

// k8s Service of the orchestrator. default = "save-orchestrator"
func (k *KubernetesConfig) Service() string {
	return k.service
}

// URL of the orchestrator Service as seen from pods in the cluster.
func (k *KubernetesConfig) ServiceURL(port int32) string {
	return fmt.Sprintf("http://%s.%s.svc.%s:%d", k.service, k.namespace, k.domain, port)
}

// service account of agent pods. empty means the namespace default.
func (k *KubernetesConfig) ServiceAccount() string {
	return k.serviceAccount
}

func (k *KubernetesConfig) PodLookupInterval() time.Duration {
	return k.podLookupInterval
}

func (k *KubernetesConfig) PodLookupAttempts() int {
	return k.podLookupAttempts
}

type DockerConfig struct {
	host    string
	network string
}

// docker daemon to connect. empty means DOCKER_HOST or the platform default.
func (d *DockerConfig) Host() string {
	return d.host
}

// network agent containers join. empty means the default bridge.
func (d *DockerConfig) Network() string {
	return d.network
}

// How agents are started.
type AgentConfig struct {
	image            string
	command          []string
	args             []string
	workingDir       string
	env              map[string]string
	requests         map[string]resource.Quantity
	limits           map[string]resource.Quantity
	ttlAfterFinished time.Duration
	cliArgs          []string
	orchestratorUrl  string
	backendUrl       string
	batchSize        int
}

func (a *AgentConfig) Image() string {
	return a.image
}

func (a *AgentConfig) Command() []string {
	return append([]string{}, a.command...)
}

func (a *AgentConfig) Args() []string {
	return append([]string{}, a.args...)
}

func (a *AgentConfig) WorkingDir() string {
	return a.workingDir
}

func (a *AgentConfig) Env() map[string]string {
	ret := map[string]string{}
	for k, v := range a.env {
		ret[k] = v
	}
	return ret
}

func (a *AgentConfig) Requests() map[string]resource.Quantity {
	return copyQuantities(a.requests)
}

func (a *AgentConfig) Limits() map[string]resource.Quantity {
	return copyQuantities(a.limits)
}

func (a *AgentConfig) TTLAfterFinished() time.Duration {
	return a.ttlAfterFinished
}

// save-cli arguments given to every agent, before arguments of each execution.
func (a *AgentConfig) CliArgs() []string {
	return append([]string{}, a.cliArgs...)
}

// URL of the orchestrator as seen from agents.
//
// For kubernetes runner, it defaults to the URL of the orchestrator Service.
func (a *AgentConfig) OrchestratorURL() string {
	return a.orchestratorUrl
}

// URL of the backend as seen from agents.
func (a *AgentConfig) BackendURL() string {
	return a.backendUrl
}

// batch size used when an execution does not specify one.
func (a *AgentConfig) BatchSize() int {
	return a.batchSize
}

func copyQuantities(q map[string]resource.Quantity) map[string]resource.Quantity {
	ret := map[string]resource.Quantity{}
	for k, v := range q {
		ret[k] = v.DeepCopy()
	}
	return ret
}

type HeartbeatConfig struct {
	interval        time.Duration
	timeout         time.Duration
	startupTimeout  time.Duration
	inspectInterval time.Duration
}

// How often agents send heartbeats.
func (h *HeartbeatConfig) Interval() time.Duration {
	return h.interval
}

// Agents missing heartbeats longer than this are CRASHED.
func (h *HeartbeatConfig) Timeout() time.Duration {
	return h.timeout
}

// Agents not sending the first heartbeat in this duration after their
// execution started are given up on.
func (h *HeartbeatConfig) StartupTimeout() time.Duration {
	return h.startupTimeout
}

// How often the watchdog looks for crashed agents.
func (h *HeartbeatConfig) InspectInterval() time.Duration {
	return h.inspectInterval
}

type StopAgentsConfig struct {
	interval       time.Duration
	timeout        time.Duration
	cleanupTimeout time.Duration
}

func (s *StopAgentsConfig) Interval() time.Duration {
	return s.interval
}

func (s *StopAgentsConfig) Timeout() time.Duration {
	return s.timeout
}

// Limit of hooks and container removal after an execution finished.
// Containers not removed in time are retried by the watchdog.
func (s *StopAgentsConfig) CleanupTimeout() time.Duration {
	return s.cleanupTimeout
}

type TokenConfig struct {
	secret []byte
	ttl    time.Duration
}

// HS256 key signing agent tokens.
func (t *TokenConfig) Secret() []byte {
	return append([]byte{}, t.secret...)
}

func (t *TokenConfig) TTL() time.Duration {
	return t.ttl
}
