package db

import "context"

// SchemaInterface manages the database schema.
type SchemaInterface interface {
	// Upgrade applies all versions newer than the current one.
	Upgrade(ctx context.Context) error

	// Version returns the current version of the schema. 0 means no schema.
	Version(ctx context.Context) (int, error)

	// Context returns a context canceled when the schema in database becomes
	// older than the latest version in the schema repository.
	//
	// Args
	//
	// - ctx: The parent context.
	//
	// Returns
	//
	// - context.Context: canceled with a cause describing the mismatch.
	//
	// - context.CancelFunc: stops watching.
	Context(ctx context.Context) (context.Context, context.CancelFunc)
}
