// Package os reads settings from environment variables, for defaults of command line flags.
package os

import (
	"log"
	"os"
	"strconv"
	"time"
)

// GetEnvOr returns the environment variable, or fallback if it is missing or empty.
func GetEnvOr(name, fallback string) string {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	return val
}

// GetEnvIntOr is GetEnvOr for integers.
//
// A value which is not an integer is logged and replaced with fallback.
func GetEnvIntOr(name string, fallback int) int {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("envvar %s is not an integer: %s. use %d", name, val, fallback)
		return fallback
	}
	return i
}

// GetEnvDurationOr is GetEnvOr for durations, like "15s".
//
// A value which is not a duration is logged and replaced with fallback.
func GetEnvDurationOr(name string, fallback time.Duration) time.Duration {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("envvar %s is not a duration: %s. use %s", name, val, fallback)
		return fallback
	}
	return d
}
