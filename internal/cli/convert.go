package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientFX/internal/orchestrator"
)

type convertOptions struct {
	to string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <in> [out]",
		Short: "Convert a scene document between JSON and YAML",
		Long: `Rewrite a scene document as JSON or YAML.

The target format is taken from --to, or from the extension of out. Without
out the converted document is written to stdout.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			return runConvert(rootOpts, opts, args[0], out, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", "", "target format (json|yaml)")

	return cmd
}

func runConvert(rootOpts *RootOptions, opts *convertOptions, in, out string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	to := opts.to
	if to == "" {
		switch strings.ToLower(filepath.Ext(out)) {
		case ".yaml", ".yml":
			to = "yaml"
		default:
			to = "json"
		}
	}
	if to != "json" && to != "yaml" {
		_ = f.Error(ErrCodeGeneric, "--to must be json or yaml", nil)
		return NewExitError(ExitCommandError, ErrCodeGeneric)
	}

	data, err := os.ReadFile(in)
	if errors.Is(err, fs.ErrNotExist) {
		_ = f.Error(ErrCodeNotFound, "scene file not found: "+in, nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}

	converted, err := Convert(data, to)
	if err != nil {
		_ = f.Error(ErrCodeDecode, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeDecode, err)
	}

	if out == "" {
		_, err = cmd.OutOrStdout().Write(converted)
		return err
	}
	if err := os.WriteFile(out, converted, 0o644); err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}
	f.VerboseLog("Wrote %d bytes to %s", len(converted), out)
	return f.Success("✓ wrote "+out, map[string]string{"out": out, "format": to})
}

// Convert renders a scene document as "json" (indented) or "yaml". The
// document must decode as a scene.
func Convert(data []byte, to string) ([]byte, error) {
	if _, err := orchestrator.DecodeScene(data); err != nil {
		return nil, err
	}
	raw, err := orchestrator.ToJSON(data)
	if err != nil {
		return nil, err
	}
	if to == "yaml" {
		return orchestrator.ToYAML(raw)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
