// Command lexsim runs temporal statute simulations described by scenario files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/lexsim/pkg/cache"
	"github.com/Mindburn-Labs/lexsim/pkg/config"
	"github.com/Mindburn-Labs/lexsim/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries process-wide dependencies into the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	cache  cache.Cache
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}
	a := &app{
		cfg:    cfg,
		logger: cfg.Logger(stderr),
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}

	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lexsim",
		Short: "Temporal simulation of versioned statutes",
		Long: `lexsim simulates how a population is affected by statutes over time.

Statutes carry effective windows and dated amendments; the population
changes through scheduled events and optional demographic projection.
Each step evaluates every active statute against every active agent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				a.logger = logging.NewLogger(lvl, a.stderr)
			}
		},
	}

	root.PersistentFlags().Bool("json", false, "Output as JSON")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides LEXSIM_LOG_LEVEL")

	root.AddCommand(
		newRunCmd(a),
		newWhatIfCmd(a),
		newRetroCmd(a),
		newValidateCmd(a),
		newRunsCmd(a),
		newVersionCmd(a),
	)
	return root
}
