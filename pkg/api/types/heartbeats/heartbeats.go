package heartbeats

import (
	"encoding/json"
	"fmt"
	"time"
)

type AgentInfo struct {
	ContainerId   string `json:"containerId"`
	ContainerName string `json:"containerName"`
	Version       string `json:"version"`
}

type ExecutionProgress struct {
	ExecutionId int64 `json:"executionId"`

	// 0..100
	PercentCompletion int `json:"percentCompletion"`
}

// Heartbeat is sent periodically from save-agent to the orchestrator.
type Heartbeat struct {
	AgentInfo         AgentInfo         `json:"agentInfo"`
	State             string            `json:"state"`
	ExecutionProgress ExecutionProgress `json:"executionProgress"`
	Timestamp         time.Time         `json:"timestamp"`
}

type ResponseType string

const (
	TypeInit      ResponseType = "InitResponse"
	TypeNewJob    ResponseType = "NewJobResponse"
	TypeContinue  ResponseType = "ContinueResponse"
	TypeWait      ResponseType = "WaitResponse"
	TypeTerminate ResponseType = "TerminateResponse"
)

// Response is an instruction for an agent, answered to a Heartbeat.
//
// It is one of InitResponse, NewJobResponse, ContinueResponse, WaitResponse or TerminateResponse.
type Response interface {
	Type() ResponseType
}

// AgentConfig is given to an agent starting up.
type AgentConfig struct {
	// arguments passed to save-cli for every batch.
	CliArgs []string `json:"cliArgs"`

	HeartbeatIntervalSeconds int `json:"heartbeatIntervalSeconds"`
}

type InitResponse struct {
	Config AgentConfig `json:"config"`
}

func (InitResponse) Type() ResponseType { return TypeInit }

type NewJobResponse struct {
	// test file paths, relative to test suites root
	Tests   []string `json:"tests"`
	CliArgs []string `json:"cliArgs"`
}

func (NewJobResponse) Type() ResponseType { return TypeNewJob }

type ContinueResponse struct{}

func (ContinueResponse) Type() ResponseType { return TypeContinue }

type WaitResponse struct{}

func (WaitResponse) Type() ResponseType { return TypeWait }

type TerminateResponse struct{}

func (TerminateResponse) Type() ResponseType { return TypeTerminate }

// Envelope is the JSON form of Response, discriminated by "type".
//
//	{"type": "NewJobResponse", "tests": [...], "cliArgs": [...]}
type Envelope struct {
	Response Response
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Response == nil {
		return nil, fmt.Errorf("empty heartbeat response")
	}

	body, err := json.Marshal(e.Response)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, err := json.Marshal(e.Response.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	head := struct {
		Type *ResponseType `json:"type"`
	}{}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	if head.Type == nil {
		return fmt.Errorf(`required field missing: "type"`)
	}

	switch *head.Type {
	case TypeInit:
		r := InitResponse{}
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		e.Response = r
	case TypeNewJob:
		r := NewJobResponse{}
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		e.Response = r
	case TypeContinue:
		e.Response = ContinueResponse{}
	case TypeWait:
		e.Response = WaitResponse{}
	case TypeTerminate:
		e.Response = TerminateResponse{}
	default:
		return fmt.Errorf("unknown heartbeat response type: %s", *head.Type)
	}
	return nil
}
