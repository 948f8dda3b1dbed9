package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientFX/internal/events"
)

// SceneList is the output of the scenes command.
type SceneList struct {
	Active string   `json:"active,omitempty"`
	Scenes []string `json:"scenes"`
}

// NewScenesCommand creates the scenes command.
func NewScenesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &storeOptions{}

	cmd := &cobra.Command{
		Use:           "scenes",
		Short:         "List stored scenes and the active one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			store, _, err := opts.open(f)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var list SceneList
			if list.Scenes, err = store.SceneIDs(ctx); err == nil {
				list.Active, err = store.ActiveScene(ctx)
			}
			if err != nil {
				_ = f.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, ErrCodeStore, err)
			}
			if list.Scenes == nil {
				list.Scenes = []string{}
			}
			return f.Success(formatSceneList(list), list)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func formatSceneList(l SceneList) string {
	if len(l.Scenes) == 0 {
		return "no stored scenes"
	}
	var b strings.Builder
	for i, id := range l.Scenes {
		if i > 0 {
			b.WriteByte('\n')
		}
		marker := "  "
		if id == l.Active {
			marker = "* "
		}
		b.WriteString(marker + id)
	}
	return b.String()
}

type historyOptions struct {
	store  storeOptions
	limit  int
	topics []string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print events persisted by the engine",
		Long: `Print the newest events from the store's event log, oldest first.

--topic keeps events whose name starts with the given prefix and may be
repeated (--topic graph. --topic entity.).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, opts, cmd)
		},
	}

	opts.store.addFlags(cmd)
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "number of events to read")
	cmd.Flags().StringArrayVar(&opts.topics, "topic", nil, "event name prefix to keep")

	return cmd
}

func runHistory(rootOpts *RootOptions, opts *historyOptions, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)
	store, _, err := opts.store.open(f)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	all, err := store.RecentEvents(ctx, opts.limit)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStore, err)
	}

	out := make([]events.Event, 0, len(all))
	for _, e := range all {
		if events.Matches(e.Name, opts.topics) {
			out = append(out, e)
		}
	}

	var b strings.Builder
	for i, e := range out {
		if i > 0 {
			b.WriteByte('\n')
		}
		line := fmt.Sprintf("%s %-5s %-24s %s", e.Timestamp, e.Level, e.Name, e.Message)
		if len(e.Fields) > 0 {
			line += fmt.Sprintf(" %v", e.Fields)
		}
		b.WriteString(strings.TrimRight(line, " "))
	}
	if len(out) == 0 {
		b.WriteString("no events")
	}
	return f.Success(b.String(), out)
}
