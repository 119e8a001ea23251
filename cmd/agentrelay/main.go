// Command agentrelay runs agents described by a YAML configuration file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/observability"
)

type runFlags struct {
	configPath string
	agentID    string
	sessionID  string
	message    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "agentrelay",
		Short:         "agentrelay - streaming agent loop and multi-agent relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "agentrelay.yaml", "Path to the configuration file")

	root.AddCommand(newRunCmd(&configPath), newAgentsCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke an agent with a single message or one message per stdin line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.configPath = *configPath
			return runAgent(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&flags.agentID, "agent", "a", "", "Agent id or name to invoke (defaults to the first configured agent)")
	cmd.Flags().StringVarP(&flags.sessionID, "session", "s", "", "Session id (defaults to a fresh id)")
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Single message to send")
	return cmd
}

func newAgentsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := cfg.Build(func(o *config.BuildOptions) { o.LogOutput = cmd.ErrOrStderr() })
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range app.Relay.DescribeAll() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, d.Name, d.Description)
			}
			return nil
		},
	}
}

func runAgent(ctx context.Context, flags *runFlags, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	shutdown, err := observability.InitTracing(ctx, cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	app, err := cfg.Build(func(o *config.BuildOptions) { o.LogOutput = stderr })
	if err != nil {
		return err
	}

	if app.Gatherer != nil {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           observability.Handler(app.Gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Logger.Error("cli.metrics.serve_failed", "addr", cfg.Metrics.Addr, "error", err.Error())
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	agentID := flags.agentID
	if agentID == "" {
		agentID = cfg.Agents[0].ID
	}
	sessionID := flags.sessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	enc := json.NewEncoder(stdout)
	send := func(text string) error {
		// Returning early cancels the run so it does not block on the stream.
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		_, msgs, err := app.Relay.Invoke(runCtx, sessionID, agentID, text)
		if err != nil {
			return err
		}
		var failure string
		for m := range msgs {
			if err := enc.Encode(m); err != nil {
				return err
			}
			if m.Type == core.MessageError {
				failure = fmt.Sprint(m.Content)
			}
		}
		if failure != "" {
			return errors.New(failure)
		}
		return nil
	}

	if flags.message != "" {
		return send(flags.message)
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}
