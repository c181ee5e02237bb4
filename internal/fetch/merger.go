package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Merger is the contract with the external media-processing tool.
type Merger interface {
	// Available reports whether the tool can be invoked.
	Available() bool

	// Merge combines a video-only and an audio-only file into outputPath,
	// copying the video track and re-encoding audio at a fixed quality. It is
	// bounded by the tool's operation timeout; on expiry the process is killed
	// and an error returned.
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// DefaultMergeTimeout bounds one merge-tool invocation.
const DefaultMergeTimeout = 5 * time.Minute

// errMergeTimeout marks a merge that exceeded the operation timeout.
var errMergeTimeout = errors.New("merge tool timed out")

// FFmpeg invokes the ffmpeg binary as the merge tool.
type FFmpeg struct {
	Path    string
	Timeout time.Duration
}

// NewFFmpeg returns an FFmpeg merger. If path is empty, "ffmpeg" is resolved
// from PATH; if timeout is non-positive, DefaultMergeTimeout applies.
func NewFFmpeg(path string, timeout time.Duration) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultMergeTimeout
	}
	return &FFmpeg{Path: path, Timeout: timeout}
}

// Available implements Merger.Available.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Version returns the tool's version line, or an empty string when the tool
// is missing or unresponsive. Used for diagnostics endpoints only.
func (f *FFmpeg) Version() string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, f.Path, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// Merge implements Merger.Merge. The video track is stream-copied and the
// audio track re-encoded to AAC; -shortest matches the shorter input and -y
// forces output overwrite. Stderr is retained for diagnostics on failure.
func (f *FFmpeg) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	isolateProcess(cmd)
	cmd.WaitDelay = 5 * time.Second // backstop for a process that survives the group kill
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", errMergeTimeout, f.Timeout)
		}
		return fmt.Errorf("merge tool failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return errors.New("merge produced an empty or missing output")
	}
	return nil
}

// ConvertAudio transcodes inputPath to outputPath with the given codec
// ("mp3" or "aac") and bitrate (e.g. "192k"). Used by the manual download
// path when the caller asks for an audio target format.
func (f *FFmpeg) ConvertAudio(ctx context.Context, inputPath, outputPath, codec, bitrate string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	encoder := "aac"
	if codec == "mp3" {
		encoder = "libmp3lame"
	}

	args := []string{
		"-i", inputPath,
		"-vn",
		"-acodec", encoder,
		"-ab", bitrate,
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	isolateProcess(cmd)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", errMergeTimeout, f.Timeout)
		}
		return fmt.Errorf("audio conversion failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return errors.New("audio conversion produced an empty or missing output")
	}
	return nil
}
