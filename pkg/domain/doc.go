package domain

// domain package contains the Domain Models and Interfaces for the save-cloud orchestrator.
//
// `domain/orchestrator` package exposes root object of the orchestrator.
// Entrypoints of applications should instantiate it and use it to interact with the domain.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and functions.
// For example, `domain/agent.go` contains the `Agent` entity.
//
// `domain/ENTITY` directory contains the "physical" representation of the entities,
// the RDB tables and their manipulation.
//
// # Entities
//
// - `execution`: a benchmark run requested by the backend.
// An Execution owns a list of test files (TestExecution) and is processed by Agents.
// Status goes PENDING -> RUNNING -> FINISHED or ERROR.
//
// - `agent`: a save-agent process running in a container (k8s Pod or docker container).
// Agents report their state by heartbeats, and the orchestrator answers each heartbeat
// with an instruction: new job, continue, wait or terminate.
//
// - `test execution`: one test file of an Execution.
// Tests are handed to agents in batches, and their results are reported back by agents.
//
// Containers themselves are handled by `runner` package (Kubernetes Job or docker).
