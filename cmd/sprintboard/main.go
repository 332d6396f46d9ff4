package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/evanschultz/sprintboard/internal/adapters/server"
	"github.com/evanschultz/sprintboard/internal/adapters/server/common"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	opts := defaultGlobalOptions()
	root := &cobra.Command{
		Use:   "sprintboard",
		Short: "Kanban board with dense column positions and sprint ordering",
		Long: "sprintboard keeps every status column densely numbered and every sprint uniquely " +
			"ordered across create, update, move, delete, and duplicate.",
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database (forces the sqlite driver)")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev) and the dev log file")
	flags.StringVar(&opts.actorID, "actor", opts.actorID, "actor id recorded in task history")

	root.AddCommand(
		newVersionCommand(),
		newPathsCommand(&opts),
		newServeCommand(&opts),
		newResequenceCommand(&opts),
		newTaskCommand(&opts),
		newColumnCommand(&opts),
		newBoardCommand(&opts),
		newSprintCommand(&opts),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sprintboard %s\n", version)
			return err
		},
	}
}

func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := resolvePaths(*opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP tools, and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *boardRuntime) error {
				cfg := rt.cfg.Server
				if bind != "" {
					cfg.HTTPBind = bind
				}
				var gatherer prometheus.Gatherer
				if rt.registry != nil {
					gatherer = rt.registry
				}
				return server.Run(ctx, server.Config{
					HTTPBind:        cfg.HTTPBind,
					APIEndpoint:     cfg.APIEndpoint,
					MCPEndpoint:     cfg.MCPEndpoint,
					MetricsEndpoint: cfg.MetricsEndpoint,
					ServerName:      "sprintboard",
					ServerVersion:   version,
				}, server.Dependencies{
					Board:    common.NewAppServiceAdapter(rt.service),
					Ready:    rt.store.Ping,
					Gatherer: gatherer,
					Logger:   rt.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides server.http_bind)")
	return cmd
}

func newResequenceCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resequence",
		Short: "Repair every column and sprint to dense, unique ordering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *boardRuntime) error {
				report, err := rt.service.ResequenceAll(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

// withRuntime opens the runtime for one command and closes it afterwards.
func withRuntime(cmd *cobra.Command, opts *globalOptions, fn func(context.Context, *boardRuntime) error) (err error) {
	rt, err := openRuntime(cmd.Context(), *opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	name := cmd.CommandPath()
	rt.logger.Debug("command flow start", "command", name)
	if err := fn(actorContext(cmd.Context(), opts.actorID), rt); err != nil {
		rt.logger.Error("command flow failed", "command", name, "err", err)
		return err
	}
	rt.logger.Debug("command flow complete", "command", name)
	return nil
}

// writeJSON prints one indented JSON document.
func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
