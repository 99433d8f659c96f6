package domain

import "time"

// Heartbeat is a periodic report from an agent.
type Heartbeat struct {
	Agent       AgentInfo
	ExecutionId int64
	State       AgentState

	// 0..100
	Progress int

	// as the agent tells. The orchestrator records its own clock.
	Timestamp time.Time
}

type HeartbeatAction string

const (
	// agent should configure itself and become IDLE.
	ActionInit HeartbeatAction = "Init"

	// agent should run Tests.
	ActionNewJob HeartbeatAction = "NewJob"

	// agent should keep doing what it does.
	ActionContinue HeartbeatAction = "Continue"

	// agent should wait for the backend to recover.
	ActionWait HeartbeatAction = "Wait"

	// agent should exit.
	ActionTerminate HeartbeatAction = "Terminate"
)

// HeartbeatReply is what the orchestrator asks an agent to do.
type HeartbeatReply struct {
	Action HeartbeatAction

	// ActionNewJob only.
	Tests []TestExecution

	// ActionInit and ActionNewJob. Arguments passed to save-cli.
	CliArgs []string

	// ActionInit only.
	HeartbeatInterval time.Duration
}

// ExecutionDetail is an Execution with its agents and test counts.
type ExecutionDetail struct {
	Execution
	Agents []Agent
	Tests  map[TestStatus]int
}
