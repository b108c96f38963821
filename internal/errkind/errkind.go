// Package errkind defines the error kinds surfaced by the assembly engine.
// Callers classify failures with errors.As; every kind that wraps a cause
// exposes it through Unwrap.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

// MaxStderrBytes bounds how much external tool output an ExternalToolError keeps.
const MaxStderrBytes = 8 * 1024

// MissingAssetError reports a referenced file that does not exist.
type MissingAssetError struct {
	Path string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing asset: %s", e.Path)
}

// AnalysisError reports an audio decode or tempo estimation failure.
type AnalysisError struct {
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// InsufficientMediaError reports a clip pool that is too small or an empty cut schedule.
type InsufficientMediaError struct {
	Reason string
}

func (e *InsufficientMediaError) Error() string {
	return "insufficient media: " + e.Reason
}

// ExternalToolError reports a failed ffmpeg/ffprobe invocation.
type ExternalToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Tool)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if tail := lastLine(e.Stderr); tail != "" {
		fmt.Fprintf(&b, " (%s)", tail)
	}
	return b.String()
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// NewExternalToolError builds an ExternalToolError keeping only the tail of stderr.
func NewExternalToolError(tool string, args []string, stderr string, err error) *ExternalToolError {
	if len(stderr) > MaxStderrBytes {
		stderr = stderr[len(stderr)-MaxStderrBytes:]
	}
	return &ExternalToolError{Tool: tool, Args: args, Stderr: stderr, Err: err}
}

// CacheCorruptionError reports an unreadable metadata cache. It is recovered
// from by starting with an empty cache.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("metadata cache %s is corrupt: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// IsMissingAsset reports whether err is or wraps a MissingAssetError.
func IsMissingAsset(err error) bool {
	var target *MissingAssetError
	return errors.As(err, &target)
}

// IsExternalTool reports whether err is or wraps an ExternalToolError.
func IsExternalTool(err error) bool {
	var target *ExternalToolError
	return errors.As(err, &target)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
