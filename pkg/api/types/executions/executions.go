package executions

import (
	"time"
)

type Test struct {
	FilePath  string `json:"filePath"`
	TestSuite string `json:"testSuite"`
}

// Request is a body of POST /initializeAgents.
type Request struct {
	ExecutionId int64    `json:"executionId"`
	Project     string   `json:"project"`
	Sdk         string   `json:"sdk"`
	TestSuites  []string `json:"testSuites"`
	Command     string   `json:"command,omitempty"`
	BatchSize   int      `json:"batchSize,omitempty"`
	Replicas    int      `json:"replicas"`
	Tests       []Test   `json:"tests"`
}

type Summary struct {
	ExecutionId int64     `json:"executionId"`
	Project     string    `json:"project"`
	Sdk         string    `json:"sdk"`
	TestSuites  []string  `json:"testSuites"`
	Status      string    `json:"status"`
	Replicas    int       `json:"replicas"`
	BatchSize   int       `json:"batchSize"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Agent struct {
	ContainerId   string    `json:"containerId"`
	ContainerName string    `json:"containerName"`
	Version       string    `json:"version"`
	State         string    `json:"state"`
	Progress      int       `json:"progress"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

type Detail struct {
	Summary
	Agents []Agent `json:"agents"`

	// number of tests per status
	Tests map[string]int `json:"tests"`
}

// StopResult is a body of response of POST /stopAgents.
type StopResult struct {
	Stopped bool `json:"stopped"`
}
