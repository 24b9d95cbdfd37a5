package db

import (
	"fmt"
	"io"
	"log"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status or
// force <version>. Output is written to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}

	// Open without migrating; the action decides what happens to the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(); err != nil {
			return err
		}
		return printStatus(database, out)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(); err != nil {
			return err
		}
		return printStatus(database, out)

	case "status":
		return printStatus(database, out)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: riskreport migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateForce(version); err != nil {
			return err
		}
		fmt.Fprintf(out, "Migration version forced to %d\n", version)
		return nil

	case "help":
		PrintMigrateHelp(out)
		return nil

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printStatus(database *DB, out io.Writer) error {
	status, err := database.GetMigrationStatus()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest available: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	switch {
	case status.Dirty:
		fmt.Fprintln(out, "Database is in a dirty state. Inspect it, then run: riskreport migrate force <version>")
	case status.Pending() > 0:
		fmt.Fprintf(out, "%d migration(s) pending. Run: riskreport migrate up\n", status.Pending())
	default:
		fmt.Fprintln(out, "Database is up to date")
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, `Usage: riskreport migrate <action>

Actions:
  up               Apply all pending migrations
  down             Roll back the most recent migration
  status           Show the current and latest schema versions
  force <version>  Set the recorded version without running migrations (recovery only)
  help             Show this message`)
}
