package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/koustreak/sqlforge/internal/config"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
	"github.com/koustreak/sqlforge/internal/generator"
	"github.com/koustreak/sqlforge/internal/schema"
	"github.com/koustreak/sqlforge/internal/server"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// explicit reports which flags were set on the command line.
func explicit(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("generate", stderr)
	var (
		cfgPath      = fs.String("config", "", "Path to the YAML config file")
		manifestPath = fs.String("manifest", "", "Path to the selection manifest (required)")
		dsn          = fs.String("dsn", "", "Source database URL (overrides config)")
		output       = fs.String("o", "", "Write the script to this file instead of stdout")
		upload       = fs.Bool("upload", false, "Publish the script to the configured store")
		data         = fs.Bool("data", true, "Include INSERT statements for selected tables")
		drop         = fs.Bool("drop", true, "Emit the cleanup section that drops selected objects first")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *manifestPath == "" {
		fs.Usage()
		return errs.New(errs.ErrKindInvalidInput, "generate: -manifest is required")
	}

	cfg, log, err := loadConfig(*cfgPath, stderr)
	if err != nil {
		return err
	}
	sel, err := config.LoadManifest(*manifestPath)
	if err != nil {
		return err
	}

	opts := cfg.Options()
	set := explicit(fs)
	if set["data"] {
		opts.IncludeData = *data
	}
	if set["drop"] {
		opts.DropAndRecreate = *drop
	}

	creds := cfg.DatabaseConfig()
	if *dsn != "" {
		creds = cfg.WithDSN(*dsn)
	}

	script, err := generator.New(dial, generator.WithLogger(log)).Generate(ctx, generator.Input{
		Credentials: creds,
		Selections:  sel,
		Options:     opts,
	})
	if err != nil {
		return err
	}

	if sentinels := generator.Sentinels(script); len(sentinels) > 0 {
		log.Warnf("script contains %d placeholder comments for objects that could not be retrieved", len(sentinels))
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(script), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *output, err)
		}
		log.Infof("wrote %d bytes to %s", len(script), *output)
	} else if !*upload {
		if _, err := io.WriteString(stdout, script); err != nil {
			return err
		}
	}

	if *upload {
		if cfg.Store == nil {
			return errs.New(errs.ErrKindInvalidInput, "generate: -upload needs a store section in the config")
		}
		sc := cfg.Store.Filestore()
		store, err := openStore(ctx, sc)
		if err != nil {
			return err
		}
		defer store.Close()

		art, err := filestore.Publish(ctx, store, sc.Bucket, sc.Prefix, script, sc.PresignTTL)
		if err != nil {
			return err
		}
		return writeJSON(stdout, art)
	}
	return nil
}

func runSchemas(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("schemas", stderr)
	var (
		cfgPath = fs.String("config", "", "Path to the YAML config file")
		dsn     = fs.String("dsn", "", "Source database URL (overrides config)")
		tables  = fs.Bool("tables", false, "Only list schemas and their tables")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(*cfgPath, stderr)
	if err != nil {
		return err
	}
	creds := cfg.DatabaseConfig()
	if *dsn != "" {
		creds = cfg.WithDSN(*dsn)
	}

	intro, err := dial(ctx, creds)
	if err != nil {
		return err
	}
	defer intro.Close()

	if *tables {
		out, err := schema.ListSchemaTables(ctx, intro)
		if err != nil {
			return err
		}
		return writeJSON(stdout, out)
	}

	out, err := schema.Catalog(ctx, intro)
	if err != nil {
		return err
	}
	return writeJSON(stdout, out)
}

func runProcedures(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("procedures", stderr)
	target := fs.String("schema", "public", "Schema to install the procedures into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, err := io.WriteString(stdout, schema.ProcedureSQL(*target))
	return err
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var (
		cfgPath = fs.String("config", "", "Path to the YAML config file")
		addr    = fs.String("addr", "", "Listen address (overrides config)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := loadConfig(*cfgPath, stderr)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	opts := []server.Option{server.WithLogger(log), server.WithDialer(dial)}
	if cfg.Store != nil {
		store, err := openStore(ctx, cfg.Store.Filestore())
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithStore(store))
	}

	return server.New(cfg, opts...).ListenAndServe(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
