package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/omniedit/internal/history"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/luarun"
	"github.com/zjrosen/omniedit/internal/pubsub"
	"github.com/zjrosen/omniedit/internal/runner"
	"github.com/zjrosen/omniedit/internal/tracing"
)

var (
	runInterval  time.Duration
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run <file> [args...]",
	Short: "Run a Lua program and stream its output",
	Long: `Run a Lua program. Output written with print or io.write is buffered and
delivered to the terminal in batches. Ctrl-C stops the program; output it
produced before stopping is still shown.

Extra arguments are available to the program in the global "arg" table.

Examples:
  omniedit run hello.lua
  omniedit run count.lua 10 --interval 50ms
  omniedit run slow.lua --no-history`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "output delivery interval (overrides run.pump_interval)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record this run in the history database")
}

// runRequest is everything runScript needs to execute one program.
type runRequest struct {
	Name     string
	Source   string
	Args     []string
	Interval time.Duration
	Tracer   trace.Tracer
}

// runResult is the finished run and everything it delivered.
type runResult struct {
	Outcome    runner.Outcome
	Transcript string
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path) //nolint:gosec // G304: user-selected program
	if err != nil {
		return fmt.Errorf("reading program: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(cfg.Tracing.Provider())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}()

	interval := cfg.Run.PumpInterval
	if runInterval > 0 {
		interval = runInterval
	}

	res, err := runScript(ctx, cmd.OutOrStdout(), runRequest{
		Name:     filepath.Base(path),
		Source:   string(source),
		Args:     args[1:],
		Interval: interval,
		Tracer:   provider.Tracer(),
	})
	if err != nil {
		return err
	}

	if cfg.Run.History && !runNoHistory {
		if err := recordRun(cmd.Context(), cfg.History.ResolvedPath(), path, res); err != nil {
			// history is best effort
			log.ErrorErr(log.CatHistory, "failed to record run", err, "run_id", res.Outcome.RunID)
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}

	switch res.Outcome.Status {
	case runner.StatusCancelled:
		fmt.Fprintln(cmd.ErrOrStderr(), "[stopped]")
	case runner.StatusFailed:
		return fmt.Errorf("run %s failed: %w", res.Outcome.RunID, res.Outcome.Err)
	}
	return nil
}

// runScript executes req under a supervisor, writing delivered output to w.
// Cancelling ctx stops the program; runScript still returns once the final
// output has been delivered.
func runScript(ctx context.Context, w io.Writer, req runRequest) (runResult, error) {
	var transcript strings.Builder
	sink := func(text string) {
		_, _ = io.WriteString(w, text)
		transcript.WriteString(text)
	}

	broker := pubsub.NewBroker[runner.Event]()
	defer broker.Close()
	// Closing the broker ends the subscription, so the finished event is
	// still logged after ctx is cancelled.
	events := broker.Subscribe(context.Background())
	go logRunEvents(events)

	opts := []runner.Option{runner.WithInterval(req.Interval), runner.WithEventBroker(broker)}
	if req.Tracer != nil {
		opts = append(opts, runner.WithTracer(req.Tracer))
	}
	sup := runner.NewSupervisor(sink, opts...)

	program := luarun.Program(luarun.WithChunkName(req.Name), luarun.WithArgs(req.Args...))
	if _, err := sup.Start(req.Source, program); err != nil {
		return runResult{}, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sup.Stop()
		case <-done:
		}
	}()

	outcome, err := sup.Wait(context.Background())
	if err != nil {
		return runResult{}, err
	}
	return runResult{Outcome: outcome, Transcript: transcript.String()}, nil
}

func logRunEvents(events <-chan pubsub.Event[runner.Event]) {
	for ev := range events {
		fields := []any{"run_id", ev.Payload.RunID, "state", ev.Payload.State.String()}
		if o := ev.Payload.Outcome; o != nil {
			fields = append(fields, "status", string(o.Status), "duration", o.Duration())
		}
		log.Debug(log.CatRun, string(ev.Type), fields...)
	}
}

func recordRun(ctx context.Context, dbPath, sourcePath string, res runResult) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return store.Add(ctx, history.NewRecord(res.Outcome, sourcePath, res.Transcript))
}
