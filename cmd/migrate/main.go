package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"eventmaster/internal/config"
	"eventmaster/internal/journal"
	"eventmaster/internal/migrations"
)

const usage = "usage: migrate up|down|version|force <version>|failures [limit]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	config.LoadEnv()
	runner := migrations.NewRunner(journal.Migrations, "migrations", config.GetDatabaseURL())

	var err error
	switch os.Args[1] {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "force":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = runner.Force(os.Args[2])
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = runner.Version()
		if err == nil {
			status := "clean"
			if dirty {
				status = "dirty"
			}
			fmt.Printf("Current version: %d (%s)\n", version, status)
		}
	case "failures":
		var limit int
		if limit, err = parseLimit(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = listFailures(context.Background(), limit)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("migration failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// parseLimit reads the optional row limit for failures. Zero means the
// store default.
func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", args[0])
	}
	return limit, nil
}

func listFailures(ctx context.Context, limit int) error {
	store, err := journal.Connect(config.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Failures(ctx, limit)
	if err != nil {
		return err
	}
	return journal.WriteFailures(os.Stdout, entries)
}
