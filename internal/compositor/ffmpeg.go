package compositor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// runFFmpeg executes one ffmpeg invocation consuming all inputs at once;
// there is nothing to parallelize within a single job's scene list.
func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, tail(stderr.String(), 2048))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
