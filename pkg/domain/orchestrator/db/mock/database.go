package mock

import (
	kagent "github.com/saveourtool/save-cloud/pkg/domain/agent/db"
	agentmock "github.com/saveourtool/save-cloud/pkg/domain/agent/db/mock"
	kexec "github.com/saveourtool/save-cloud/pkg/domain/execution/db"
	execmock "github.com/saveourtool/save-cloud/pkg/domain/execution/db/mock"
	kdb "github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
	schemapg "github.com/saveourtool/save-cloud/pkg/domain/schema/db/postgres"
)

type Database struct {
	Executions *execmock.ExecutionInterface
	Agents     *agentmock.AgentInterface
}

func New() *Database {
	return &Database{
		Executions: execmock.NewExecutionInterface(),
		Agents:     agentmock.NewAgentInterface(),
	}
}

var _ kdb.Database = &Database{}

func (d *Database) Execution() kexec.ExecutionInterface {
	return d.Executions
}

func (d *Database) Agent() kagent.AgentInterface {
	return d.Agents
}

func (d *Database) Schema() kschema.SchemaInterface {
	return schemapg.Null()
}

func (d *Database) Close() error {
	return nil
}
