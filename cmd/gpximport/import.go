package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/importer"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type importOptions struct {
	listID   int
	driver   string
	dbURL    string
	quiet    bool
	logLevel string
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import GPX or LOC files into the cache store",
		Long: "Import GPX or LOC files into the cache store. A GPX file named <base>.gpx is\n" +
			"merged with <base>-wpts.gpx when that file exists next to it.",
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.listID <= 0 {
				return withCode(exitUsage, fmt.Errorf("invalid --list %d", opts.listID))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.listID, "list", 1, "Cache list to import into")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "Store driver: postgres, sqlite or memory (default: DB_DRIVER)")
	cmd.Flags().StringVar(&opts.dbURL, "db", "", "Database URL or SQLite path (default: DATABASE_URL)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	return cmd
}

// storeConfig starts from the environment and applies flags on top.
func storeConfig(opts importOptions) (config.DatabaseConfig, error) {
	_ = godotenv.Load()

	cfg := config.DatabaseConfig{Driver: config.DriverMemory}
	if loaded, err := config.Load(); err == nil {
		cfg = loaded.Database
	} else if opts.driver == "" && opts.dbURL == "" {
		return cfg, err
	}

	if opts.driver != "" {
		cfg.Driver = strings.ToLower(opts.driver)
	}
	if opts.dbURL != "" {
		cfg.URL = opts.dbURL
	}
	if cfg.Driver != config.DriverMemory && cfg.URL == "" {
		return cfg, fmt.Errorf("--db is required for driver %q", cfg.Driver)
	}
	return cfg, nil
}

func runImport(cmd *cobra.Command, opts importOptions, files []string) error {
	ctx := cmd.Context()
	logging.SetupWriter(os.Stderr, opts.logLevel, "text")

	dbCfg, err := storeConfig(opts)
	if err != nil {
		return withCode(exitUsage, err)
	}

	st, err := store.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pool := importer.NewPool(importer.NewCoordinator(st), st, importer.PoolConfig{MaxConcurrent: 1})
	defer func() { _ = pool.Shutdown(ctx) }()

	out := cmd.OutOrStdout()
	var errs []error
	for _, file := range files {
		var l importer.Listener = importer.NopListener{}
		if !opts.quiet {
			l = newConsoleListener(out, file)
		}

		fut, err := pool.Submit(ctx, importer.NewFileJob(file, opts.listID), l)
		if err != nil {
			return err
		}
		summary, err := fut.Wait(ctx)
		if err != nil {
			fmt.Fprintf(out, "%s: %s\n", file, importer.AsImportError(err).Message())
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s: stored %d caches (%s) in %s\n", file, summary.Stored, summary.Format, summary.Duration.Round(time.Millisecond))
		if summary.Orphans > 0 {
			fmt.Fprintf(out, "%s: %d waypoints had no matching cache\n", file, summary.Orphans)
		}
	}
	return errors.Join(errs...)
}
