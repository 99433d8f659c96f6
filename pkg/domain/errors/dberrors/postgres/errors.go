package postgres

import (
	"fmt"

	domerr "github.com/saveourtool/save-cloud/pkg/domain/errors"
)

// Missing tells a row is not found.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domerr.ErrMissing
}

// Conflict tells a row cannot be created or updated because of others.
type Conflict struct {
	Table    string
	Identity string
	Reason   string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	if c.Reason == "" {
		return fmt.Sprintf("%s conflicts in %s", c.Identity, c.Table)
	}
	return fmt.Sprintf("%s conflicts in %s: %s", c.Identity, c.Table, c.Reason)
}

func (c Conflict) Unwrap() error {
	return domerr.ErrConflict
}

// InvalidTransition tells a status (or state) column cannot be changed as requested.
type InvalidTransition struct {
	Table    string
	Identity string
	From     string
	To       string
}

var _ error = InvalidTransition{}

func (it InvalidTransition) Error() string {
	return fmt.Sprintf(
		"%s in %s cannot be changed from %s to %s",
		it.Identity, it.Table, it.From, it.To,
	)
}

func (it InvalidTransition) Unwrap() error {
	return domerr.ErrInvalidTransition
}
