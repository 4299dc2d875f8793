package prowl

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Filter values from a slice
func Filter[T any](s []T, fn func(T) bool) []T {
	var r []T
	for _, t := range s {
		if fn(t) {
			r = append(r, t)
		}
	}
	return r
}

// A tool invocation prepared by an adapter. The pipeline owns the
// process lifecycle so termination is guaranteed on timeout and on
// run cancellation.
type ToolCommand struct {
	// Binary name, resolved through PATH
	Bin  string
	Args []string
	// Where stdout should go when the tool cannot write its own
	// output file. Empty means stdout is discarded.
	StdoutPath string
}

// Runs an external scanner to completion under the given context.
// Failures map onto the scan error taxonomy: a missing binary, a
// context deadline, or a non-zero exit.
func RunTool(ctx context.Context, plugin string, tc ToolCommand) error {
	bin, err := exec.LookPath(tc.Bin)
	if err != nil {
		return &ScanError{Plugin: plugin, Kind: ScanToolMissing, Err: err}
	}

	cmd := exec.CommandContext(ctx, bin, tc.Args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("plugin", plugin).Str("bin", bin).Strs("args", tc.Args).Msg("running tool")

	if err := cmd.Run(); err != nil {
		// the context expiring kills the process; report it as a
		// timeout rather than as the exit error it surfaces as
		if ctx.Err() != nil {
			return &ScanError{Plugin: plugin, Kind: ScanTimeout, Err: ctx.Err()}
		}
		return &ScanError{
			Plugin: plugin,
			Kind:   ScanNonZeroExit,
			Err:    errors.Wrap(err, stderrTail(stderr.Bytes())),
		}
	}

	if tc.StdoutPath != "" {
		if err := os.WriteFile(tc.StdoutPath, stdout.Bytes(), 0600); err != nil {
			return &ScanError{Plugin: plugin, Kind: ScanNonZeroExit, Err: errors.Wrap(err, "failed to write tool output")}
		}
	}
	return nil
}

func stderrTail(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[len(b)-max:]
	}
	return string(bytes.TrimSpace(b))
}

// Returns the artifact path for one (plugin, kind) pair inside the
// run workdir, creating the directory when needed.
func ArtifactPath(workdir, plugin string, kind IdentKind, ext string) (string, error) {
	dir := filepath.Join(workdir, plugin)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.Wrapf(err, "failed to create artifact directory for %s", plugin)
	}
	return filepath.Join(dir, string(kind)+ext), nil
}
