// Command countctl drives the reconciliation steps of a stock count from the shell.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/infrastructure/config"
	"github.com/erp/stockcount/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Exit codes by error kind
const (
	exitOK            = 0
	exitFatal         = 1
	exitUsage         = 2
	exitValidation    = 3
	exitStateConflict = 4
	exitNotFound      = 5
	exitMismatch      = 6
)

type options struct {
	configPath string
	countID    string
	productID  string
	userID     string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}
	command := args[0]

	var opts options
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.countID, "count", "", "Count ID")
	fs.StringVar(&opts.productID, "product", "", "Product ID (merge)")
	fs.StringVar(&opts.userID, "user", "", "Acting user ID")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFatal
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Env:    cfg.App.Env,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return exitFatal
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return exitFatal
	}
	defer func() {
		if err := a.close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	out, err := dispatch(ctx, a, command, opts)
	if err != nil {
		log.Error("Command failed",
			zap.String("command", command),
			zap.String("kind", string(shared.KindOf(err))),
			zap.Error(err))
		return exitCode(err)
	}
	if err := printJSON(out); err != nil {
		log.Error("Failed to write output", zap.Error(err))
		return exitFatal
	}
	return exitOK
}

func dispatch(ctx context.Context, a *app, command string, opts options) (any, error) {
	countID, err := parseID("count", opts.countID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOperation(logger.WithCountID(ctx, countID), command)

	switch command {
	case "summarize":
		return a.adjustments.Summarize(ctx, countID)
	case "adjustments":
		return a.adjustments.ListByCount(ctx, countID)
	case "lines":
		return a.counts.ListLines(ctx, countID)
	case "progress":
		return a.counts.Progress(ctx, countID)
	case "complete":
		return a.counts.Complete(ctx, countID)
	}

	userID, err := parseID("user", opts.userID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithUserID(ctx, userID)

	switch command {
	case "merge":
		productID, err := parseID("product", opts.productID)
		if err != nil {
			return nil, err
		}
		return a.reconciliation.Merge(ctx, countID, productID, userID)
	case "merge-all":
		return a.reconciliation.MergeMany(ctx, countID, nil, userID)
	case "commit":
		return a.commits.Commit(ctx, countID, userID)
	default:
		printUsage()
		return nil, usageError(fmt.Sprintf("unknown command %q", command))
	}
}

func parseID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, usageError(fmt.Sprintf("-%s is required", name))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(shared.CodeInvalidInput, fmt.Sprintf("invalid %s id %q", name, value))
	}
	return id, nil
}

type usageError string

func (e usageError) Error() string { return string(e) }

func exitCode(err error) int {
	if _, ok := err.(usageError); ok {
		return exitUsage
	}
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return exitValidation
	case shared.KindStateConflict:
		return exitStateConflict
	case shared.KindNotFound:
		return exitNotFound
	case shared.KindMismatch:
		return exitMismatch
	default:
		return exitFatal
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Stock count reconciliation

Usage:
  countctl <command> -count <id> [-user <id>] [-product <id>] [-config <file>]

Commands:
  summarize     Pending, applied and rejected totals and whether commit is possible
  adjustments   List the adjustment ledger, newest first
  lines         List count lines with snapshot and counted quantities
  progress      Counting progress
  merge         Fold one product's post-cutoff movements into its snapshot (-product, -user)
  merge-all     Fold every line with unprocessed movements (-user)
  commit        Apply every pending adjustment to on-hand stock (-user)
  complete      Close the count

Exit codes: 0 ok, 1 fatal, 2 usage, 3 validation, 4 state conflict, 5 not found, 6 mismatch`)
}
