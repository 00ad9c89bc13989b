package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracepipe/tracepipe/internal/ftrace"
	"github.com/tracepipe/tracepipe/internal/pipeline"
	"github.com/tracepipe/tracepipe/internal/trace/blob"
	"github.com/tracepipe/tracepipe/internal/trace/clock"
	"github.com/tracepipe/tracepipe/internal/trace/sorter"
	"github.com/tracepipe/tracepipe/internal/trace/stats"
	"github.com/tracepipe/tracepipe/internal/trace/stringpool"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <trace-file>",
	Short: "Decode a trace file and print its events in timestamp order",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().Bool("stats", false, "print anomaly counters after decoding")
	viper.BindPFlag("stats", decodeCmd.Flags().Lookup("stats"))
}

func runDecode(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	st := stats.New(logger)
	pool := stringpool.New()
	clocks := clock.NewTracker(st, logger)
	srt := sorter.New()
	tokenizer := ftrace.NewTokenizer(srt, clocks, pool, st, logger)
	reader := pipeline.NewReader(tokenizer, clocks, logger)

	if err := reader.Read(blob.New(data)); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	srt.ExtractOrdered(func(ev sorter.Event) {
		fmt.Fprintln(out, formatEvent(pool, ev))
	})

	if viper.GetBool("stats") {
		counters := st.Snapshot()
		names := make([]string, 0, len(counters))
		for name := range counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "# %s = %d\n", name, counters[name])
		}
	}
	return nil
}

func formatEvent(pool *stringpool.Pool, ev sorter.Event) string {
	switch ev.Type {
	case sorter.EventSchedSwitch:
		comm, _ := pool.Get(ev.Switch.NextComm)
		return fmt.Sprintf("cpu=%d ts=%d sched_switch prev_state=%d next_pid=%d next_prio=%d next_comm=%q",
			ev.CPU, ev.Timestamp, ev.Switch.PrevState, ev.Switch.NextPID, ev.Switch.NextPrio, comm)
	case sorter.EventSchedWaking:
		comm, _ := pool.Get(ev.Waking.Comm)
		return fmt.Sprintf("cpu=%d ts=%d sched_waking pid=%d target_cpu=%d prio=%d comm=%q",
			ev.CPU, ev.Timestamp, ev.Waking.PID, ev.Waking.TargetCPU, ev.Waking.Prio, comm)
	default:
		return fmt.Sprintf("cpu=%d ts=%d ftrace_event bytes=%d", ev.CPU, ev.Timestamp, ev.Raw.Len())
	}
}
