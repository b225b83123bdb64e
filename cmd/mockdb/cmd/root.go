// Package cmd implements the mockdb command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-mockdb/backend"
	"github.com/asaidimu/go-mockdb/config"
	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
	outputJSON = "json"
	outputYAML = "yaml"
)

// errOperation is returned when a collection operation reported an ERROR
// envelope. The envelope itself has already been written.
var errOperation = errors.New("operation failed")

type root struct {
	confFile string
	output   string

	cmd         *cobra.Command
	conf        *config.Config
	logger      *zap.Logger
	persistence *persistence.Persistence
	db          *persistence.Database
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	return rootCmd().execute(ctx, os.Args[1:])
}

func (r *root) execute(ctx context.Context, args []string) int {
	r.cmd.SetArgs(args)
	err := r.cmd.ExecuteContext(ctx)
	if cerr := r.close(); cerr != nil && err == nil {
		err = cerr
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errOperation):
		return exitFailed
	case r.conf == nil:
		// Cobra rejected the arguments or the configuration was invalid.
		fmt.Fprintln(r.cmd.ErrOrStderr(), "Error:", err)
		return exitUsage
	default:
		fmt.Fprintln(r.cmd.ErrOrStderr(), "Error:", err)
		return exitFailed
	}
}

func rootCmd() *root {
	r := &root{}
	r.cmd = &cobra.Command{
		Use:               "mockdb",
		Short:             "mockdb is an embedded document store",
		Long:              `mockdb stores JSON documents in named collections and queries them with MongoDB-style filters and update operators.`,
		PersistentPreRunE: r.init,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	pf := r.cmd.PersistentFlags()
	pf.StringVar(&r.confFile, "config", "", "Path to a config file (json, yaml or toml)")
	pf.String("data-dir", "", "Directory holding the databases")
	pf.String("db", "", "Database to operate on")
	pf.String("backend", "", "Storage backend: jsonfile, sqlite, badger or memory")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-format", "", "Log format: json or console")
	pf.StringVarP(&r.output, "output", "o", outputJSON, "Output format: json or yaml")

	r.cmd.AddCommand(
		insertCmd(r),
		findCmd(r),
		updateCmd(r),
		replaceCmd(r),
		removeCmd(r),
		countCmd(r),
		collectionsCmd(r),
		dropCmd(r),
		renameCmd(r),
		statsCmd(r),
		serveCmd(r),
	)
	return r
}

// init loads the configuration and opens the configured database, creating
// it on first use.
func (r *root) init(cmd *cobra.Command, _ []string) error {
	if r.output != outputJSON && r.output != outputYAML {
		return fmt.Errorf("unsupported output format %q", r.output)
	}
	conf, err := config.Load(r.confFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := conf.Logger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	b, err := backend.New(conf.Backend, conf.DataDir, logger)
	if err != nil {
		return err
	}
	p, err := persistence.NewPersistence(b, persistence.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	exists, err := p.DatabaseExists(ctx, conf.Database)
	if err != nil {
		return err
	}
	if !exists {
		if err := p.CreateDatabase(ctx, conf.Database); err != nil {
			return err
		}
	}
	db, err := p.Database(ctx, conf.Database)
	if err != nil {
		return err
	}

	logger.Debug("Opened database",
		zap.String("backend", conf.Backend),
		zap.String("data_dir", conf.DataDir),
		zap.String("database", conf.Database),
	)
	r.conf, r.logger, r.persistence, r.db = conf, logger, p, db
	return nil
}

func (r *root) close() error {
	if r.persistence == nil {
		return nil
	}
	err := r.persistence.Close()
	_ = r.logger.Sync()
	r.persistence = nil
	return err
}

func (r *root) collection(cmd *cobra.Command, name string) (*persistence.Collection, error) {
	return r.db.Collection(cmd.Context(), name)
}

func (r *root) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// respond writes resp and turns an ERROR envelope into errOperation.
func (r *root) respond(cmd *cobra.Command, resp *persistence.Response) error {
	if err := writeOutput(r.out(cmd), r.output, resp); err != nil {
		return err
	}
	if !resp.OK() {
		r.logger.Debug("Operation failed", zap.Error(resp.Err()))
		return errOperation
	}
	return nil
}
