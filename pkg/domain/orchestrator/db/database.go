package db

import (
	kagent "github.com/saveourtool/save-cloud/pkg/domain/agent/db"
	kexec "github.com/saveourtool/save-cloud/pkg/domain/execution/db"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
)

type Database interface {
	Execution() kexec.ExecutionInterface
	Agent() kagent.AgentInterface
	Schema() kschema.SchemaInterface
	Close() error
}
