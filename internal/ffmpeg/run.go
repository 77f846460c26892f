package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// Run executes a compiled ffmpeg-go stream with the given binary. The process
// is killed when ctx is cancelled.
func Run(ctx context.Context, bin string, stream *ffmpeggo.Stream) error {
	_, err := Exec(ctx, bin, stream.GetArgs()...)
	return err
}

// Exec runs bin with args and returns stdout. On failure the tail of stderr
// is folded into the error.
func Exec(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if tail := lastLines(stderr.String(), 4); tail != "" {
			return nil, fmt.Errorf("%s: %w: %s", baseName(bin), err, tail)
		}
		return nil, fmt.Errorf("%s: %w", baseName(bin), err)
	}
	return stdout.Bytes(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

func baseName(bin string) string {
	if i := strings.LastIndexAny(bin, `/\`); i >= 0 {
		return bin[i+1:]
	}
	return bin
}
