//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// MigrateUp runs all pending migrations
func MigrateUp() error {
	return run("go", "run", "./cmd/migrate", "up")
}

// MigrateDown rolls back the last migration
func MigrateDown() error {
	return run("go", "run", "./cmd/migrate", "down")
}

// Failures lists invitation responses that stopped part way.
func Failures() error {
	return run("go", "run", "./cmd/migrate", "failures")
}

// MigrateCreate creates new migration files
func MigrateCreate(name string) error {
	if name == "" {
		return fmt.Errorf("migration name is required")
	}
	return run("migrate", "create", "-ext", "sql", "-dir", "internal/journal/migrations", "-seq", name)
}

// Server runs the API against the in-memory store with development tokens.
func Server() error {
	os.Setenv("STORE_DRIVER", "memory")
	os.Setenv("AUTH_MODE", "jwt")
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "dev-secret")
	}
	return run("go", "run", "./cmd/server")
}

// Worker runs the push alert worker.
func Worker() error {
	return run("go", "run", "./cmd/worker")
}

// Test runs the test suite with the race detector.
func Test() error {
	return run("go", "test", "-race", "./...")
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
