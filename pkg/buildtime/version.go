// Package buildtime tells which build of save-cloud is running.
//
// The build overwrites VERSION and revision files. Local builds keep placeholders.
package buildtime

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed VERSION
	rawVersion string

	//go:embed revision
	rawRevision string
)

// Version is the release version, like "0.3.2".
func Version() string {
	return strings.TrimSpace(rawVersion)
}

// Revision is the git commit the binary is built from.
func Revision() string {
	return strings.TrimSpace(rawRevision)
}

// VersionString is Version with Revision, for logs and help messages.
func VersionString() string {
	return fmt.Sprintf("%s (commit: %s)", Version(), Revision())
}

// UserAgent is a value of User-Agent header for requests from component, like "save-agent/0.3.2".
func UserAgent(component string) string {
	return component + "/" + Version()
}
