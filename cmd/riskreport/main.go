// Command riskreport scores traffic footage for risk and serves the history
// of past analyses.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/banshee-data/risk.report/internal/version"
)

func main() {
	// .env is optional; Kafka credentials usually come from it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "analyze":
		err = runAnalyze(ctx, rest, stdout, stderr)
	case "serve":
		err = runServe(ctx, rest, stderr)
	case "history":
		err = runHistory(ctx, rest, stdout, stderr)
	case "migrate":
		err = runMigrate(rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.Get())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return 2
	}

	if err != nil {
		if err == errUsage {
			return 2
		}
		fmt.Fprintf(stderr, "riskreport %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: riskreport <command> [flags]

Commands:
  analyze   Score one piece of footage and print the analysis as JSON
  serve     Run the HTTP and gRPC servers
  history   List stored analyses
  migrate   Manage database schema migrations (up, down, status, force)
  version   Print build information

Run 'riskreport <command> -h' for command flags.
`)
}
