package postgres

import (
	"context"
	"time"

	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	kagent "github.com/saveourtool/save-cloud/pkg/domain/agent/db"
	kpgagent "github.com/saveourtool/save-cloud/pkg/domain/agent/db/postgres"
	kexec "github.com/saveourtool/save-cloud/pkg/domain/execution/db"
	kpgexec "github.com/saveourtool/save-cloud/pkg/domain/execution/db/postgres"
	dbInterface "github.com/saveourtool/save-cloud/pkg/domain/orchestrator/db"
	kschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db"
	kpgschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db/postgres"
	xe "github.com/saveourtool/save-cloud/pkg/errors"
)

type orchestratorPG struct {
	pool      kpool.Pool
	execution kexec.ExecutionInterface
	agent     kagent.AgentInterface
	schema    kschema.SchemaInterface
}

type Config struct {
	SchemaRepository string
	MaxConns         int32
	ConnectTimeout   time.Duration
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

func WithMaxConns(n int32) Option {
	return func(c *Config) *Config {
		c.MaxConns = n
		return c
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) *Config {
		c.ConnectTimeout = d
		return c
	}
}

func New(ctx context.Context, url string, options ...Option) (dbInterface.Database, error) {
	c := &Config{}
	for _, option := range options {
		c = option(c)
	}

	pool, err := kpool.Connect(ctx, url, c.MaxConns, c.ConnectTimeout)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Wrap(pool, c.SchemaRepository), nil
}

// Wrap builds Database over the pool.
//
// schemaRepository may be empty. Then Schema cannot upgrade.
func Wrap(pool kpool.Pool, schemaRepository string) dbInterface.Database {
	schema := kpgschema.Null()
	if schemaRepository != "" {
		schema = kpgschema.New(pool, schemaRepository)
	}
	return &orchestratorPG{
		pool:      pool,
		execution: kpgexec.New(pool),
		agent:     kpgagent.New(pool),
		schema:    schema,
	}
}

func (o *orchestratorPG) Execution() kexec.ExecutionInterface {
	return o.execution
}

func (o *orchestratorPG) Agent() kagent.AgentInterface {
	return o.agent
}

func (o *orchestratorPG) Schema() kschema.SchemaInterface {
	return o.schema
}

func (o *orchestratorPG) Close() error {
	o.pool.Close()
	return nil
}
