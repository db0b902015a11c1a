// sqlforge generates standalone Postgres migration scripts from a selected
// subset of a source database's schema objects and rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/sqlforge/internal/config"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
	"github.com/koustreak/sqlforge/internal/filestore/minio"
	"github.com/koustreak/sqlforge/internal/filestore/s3"
	"github.com/koustreak/sqlforge/internal/generator"
	"github.com/koustreak/sqlforge/internal/logger"
	"github.com/koustreak/sqlforge/internal/schema"
)

const version = "v0.3.0"

// Swapped in tests.
var (
	dial      generator.Dialer = schema.Dial
	openStore                  = openFilestore
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errs.IsInvalidInput(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printHelp(stderr)
		return errs.New(errs.ErrKindInvalidInput, "missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "generate":
		return runGenerate(ctx, rest, stdout, stderr)
	case "schemas":
		return runSchemas(ctx, rest, stdout, stderr)
	case "procedures":
		return runProcedures(rest, stdout, stderr)
	case "serve":
		return runServe(ctx, rest, stderr)
	case "version":
		fmt.Fprintf(stdout, "sqlforge %s\n", version)
		return nil
	case "help", "-h", "-help", "--help":
		printHelp(stdout)
		return nil
	default:
		printHelp(stderr)
		return errs.Newf(errs.ErrKindInvalidInput, "unknown command %q", cmd)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `sqlforge %s

Builds a standalone SQL migration script for selected tables, types,
functions, triggers, indexes, foreign keys and policies of a Postgres
database, optionally with row data.

USAGE:
    sqlforge <command> [FLAGS]

COMMANDS:
    generate     Generate a script from a selection manifest
    schemas      Print the selectable objects of every user schema as JSON
    procedures   Print the SQL that installs the introspection procedures
    serve        Run the HTTP API
    version      Print the version

EXAMPLES:
    # Install the procedures once on the source database
    sqlforge procedures | psql "$SQLFORGE_DSN"

    # Generate a schema-only script
    sqlforge generate -config sqlforge.yaml -manifest pick.yaml -data=false -o out.sql

    # Generate and publish to the configured store
    sqlforge generate -config sqlforge.yaml -manifest pick.yaml -upload

Run "sqlforge <command> -h" for command flags.
`, version)
}

// loadConfig reads path and builds the configured logger on stderr.
func loadConfig(path string, stderr io.Writer) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Logger(stderr))
	logger.SetGlobal(log)
	return cfg, log, nil
}

// openFilestore connects to the provider named in cfg.
func openFilestore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == filestore.ProviderS3 {
		d, err := s3.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	d, err := minio.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}
