package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	SceneID  string   `json:"scene_id"`
	Entities int      `json:"entities"`
	Repairs  []string `json:"repairs,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
}

type validateOptions struct {
	strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <scene-file>",
		Short: "Check that a scene document loads",
		Long: `Load a JSON or YAML scene document the way the engine would.

Entities that cannot be loaded are listed and fail the command. Repairs the
loader applied (generated ids, re-sorted keyframes, dropped links, default
Main length) are listed too and only fail the command with --strict.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat repairs as failures")

	return cmd
}

func runValidate(rootOpts *RootOptions, opts *validateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	res, err := LoadScene(f, path)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Valid:    len(res.Rejected) == 0 && (!opts.strict || len(res.Repairs) == 0),
		SceneID:  res.Scene.ID,
		Entities: res.Scene.Len(),
		Repairs:  res.Repairs,
		Rejected: res.Rejected,
	}

	if !result.Valid {
		problems := append(append([]string{}, res.Rejected...), res.Repairs...)
		msg := fmt.Sprintf("scene %s: %d entities rejected, %d repairs", result.SceneID, len(res.Rejected), len(res.Repairs))
		_ = f.Error(ErrCodeRejected, msg, problems)
		return NewExitError(ExitFailure, ErrCodeRejected+": "+msg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✓ scene %s valid: %d entities", result.SceneID, result.Entities)
	for _, r := range res.Repairs {
		fmt.Fprintf(&b, "\n  repaired: %s", r)
	}
	return f.Success(b.String(), result)
}
