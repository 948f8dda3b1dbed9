package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientFX/internal/orchestrator"
)

type pushOptions struct {
	store storeOptions
	force bool
}

// PushResult reports a stored scene.
type PushResult struct {
	SceneID  string   `json:"scene_id"`
	Driver   string   `json:"driver"`
	Entities int      `json:"entities"`
	Rejected []string `json:"rejected,omitempty"`
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &pushOptions{}

	cmd := &cobra.Command{
		Use:   "push <scene-file>",
		Short: "Store a scene and mark it active",
		Long: `Store a scene document in the engine's database and mark it as the scene
to restore on the next start.

The store defaults to SENTIENT_STORE_DRIVER and SENTIENT_STORE_DSN. What is
stored is the scene as loaded, with repairs applied. Scenes with rejected
entities are refused unless --force is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(rootOpts, opts, args[0], cmd)
		},
	}

	opts.store.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.force, "force", false, "store even if entities were rejected")

	return cmd
}

func runPush(rootOpts *RootOptions, opts *pushOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	res, err := LoadScene(f, path)
	if err != nil {
		return err
	}
	if len(res.Rejected) > 0 && !opts.force {
		_ = f.Error(ErrCodeRejected, "scene has rejected entities; use --force to store it anyway", res.Rejected)
		return NewExitError(ExitFailure, ErrCodeRejected)
	}

	store, driver, err := opts.store.open(f)
	if err != nil {
		return err
	}
	defer store.Close()

	doc, err := orchestrator.ExportScene(res.Scene)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeGeneric, err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := orchestrator.SaveScene(ctx, store, doc); err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStore, err)
	}

	result := PushResult{
		SceneID:  doc.ID,
		Driver:   driver,
		Entities: res.Scene.Len(),
		Rejected: res.Rejected,
	}
	return f.Success("✓ stored scene "+doc.ID+" as active in "+driver, result)
}
