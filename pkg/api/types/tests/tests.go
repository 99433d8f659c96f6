package tests

import "time"

type Result struct {
	FilePath        string    `json:"filePath"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	MissingWarnings int       `json:"missingWarnings"`
	MatchedWarnings int       `json:"matchedWarnings"`
}

// Report is a body of POST /testStatuses.
type Report struct {
	ContainerId string   `json:"containerId"`
	Results     []Result `json:"results"`
}

type Saved struct {
	Saved int `json:"saved"`
}

type Detail struct {
	Id              int64      `json:"id"`
	ExecutionId     int64      `json:"executionId"`
	FilePath        string     `json:"filePath"`
	TestSuite       string     `json:"testSuite"`
	Status          string     `json:"status"`
	AgentId         string     `json:"agentId,omitempty"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	MissingWarnings int        `json:"missingWarnings"`
	MatchedWarnings int        `json:"matchedWarnings"`
}
