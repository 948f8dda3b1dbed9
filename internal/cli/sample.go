package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/AaronLay10/SentientFX/internal/orchestrator"
	"github.com/AaronLay10/SentientFX/internal/state"
)

type sampleOptions struct {
	at        time.Duration
	step      time.Duration
	stateFile string
	set       []string
}

// NewSampleCommand creates the sample command.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample <scene-file>",
		Short: "Print the frame a scene produces at a point in time",
		Long: `Run a scene offline and print the resolved parameter values.

The clock starts at zero and advances to --at, either in one tick or in
ticks of --step. External state comes from a JSON document (--state) with
individual values overridden by --set path=value.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.at, "at", 0, "time to sample at")
	cmd.Flags().DurationVar(&opts.step, "step", 0, "tick length; 0 samples in a single tick")
	cmd.Flags().StringVar(&opts.stateFile, "state", "", "JSON file holding the external state")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "state override path=value (value is JSON or a string)")

	return cmd
}

func runSample(rootOpts *RootOptions, opts *sampleOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	if opts.at < 0 || opts.step < 0 {
		_ = f.Error(ErrCodeGeneric, "--at and --step must not be negative", nil)
		return NewExitError(ExitCommandError, ErrCodeGeneric)
	}

	st, err := sampleState(opts)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}

	res, err := LoadScene(f, path)
	if err != nil {
		return err
	}
	for _, r := range res.Rejected {
		f.VerboseLog("rejected: %s", r)
	}

	frame := Sample(orchestrator.NewRuntime(res.Scene, st), opts.at, opts.step)
	return f.Success(formatFrame(frame), frame)
}

// Sample advances rt from zero to at and returns the last frame.
func Sample(rt *orchestrator.Runtime, at, step time.Duration) *orchestrator.Frame {
	if step <= 0 || step >= at {
		return rt.Tick(at)
	}
	var frame *orchestrator.Frame
	for elapsed := time.Duration(0); elapsed < at; {
		d := step
		if at-elapsed < d {
			d = at - elapsed
		}
		frame = rt.Tick(d)
		elapsed += d
	}
	return frame
}

func sampleState(opts *sampleOptions) (*state.Store, error) {
	st := state.NewStore()
	if opts.stateFile != "" {
		data, err := os.ReadFile(opts.stateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
		if err := st.Replace(data); err != nil {
			return nil, fmt.Errorf("state file %s: %w", opts.stateFile, err)
		}
	}
	for _, kv := range opts.set {
		p, v, ok := strings.Cut(kv, "=")
		if !ok || p == "" {
			return nil, fmt.Errorf("--set wants path=value, got %q", kv)
		}
		var err error
		if gjson.Valid(v) {
			err = st.SetRaw(p, []byte(v))
		} else {
			err = st.Set(p, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

func formatFrame(f *orchestrator.Frame) string {
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "t=%s seq=%d", f.Time, f.Seq)
	for _, k := range keys {
		entity, _, _ := strings.Cut(k, "/")
		fmt.Fprintf(&b, "\n  %-32s %v", k, f.Values[k])
		if s := f.States[entity]; s != orchestrator.ElementActive {
			fmt.Fprintf(&b, " (%s)", s)
		}
	}
	return b.String()
}
