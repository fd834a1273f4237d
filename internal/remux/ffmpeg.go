// Package remux turns HLS media into a single container with ffmpeg.
package remux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famomatic/vodfetch/internal/types"
)

const stderrTailSize = 4 << 10

// FFmpeg runs the ffmpeg binary at Path.
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an FFmpeg for path, or for "ffmpeg" in PATH when path is
// empty.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.bin())
	return err == nil
}

func (f *FFmpeg) bin() string {
	if f == nil || f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

// Concat stream-copies the local playlist at playlistPath into dest.
func (f *FFmpeg) Concat(ctx context.Context, playlistPath, dest string, meta types.Metadata) error {
	if err := PrepareDestination(dest); err != nil {
		return err
	}
	args := []string{
		"-y",
		"-allowed_extensions", "ALL",
		"-protocol_whitelist", "file,http,https,tcp,tls,crypto",
		"-i", playlistPath,
		"-c", "copy",
	}
	args = append(args, metadataArgs(meta)...)
	args = append(args, dest)

	tail := &tailBuffer{max: stderrTailSize}
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	cmd.Stderr = tail
	debugCommand(ctx, args)
	if err := cmd.Run(); err != nil {
		return f.exitError(ctx, err, tail.String())
	}
	return nil
}

// Stream lets ffmpeg fetch manifestURL itself and copies it into dest,
// reporting progress parsed from its diagnostic output through onProgress.
func (f *FFmpeg) Stream(ctx context.Context, manifestURL, dest string, totalSegments int, totalDuration time.Duration, meta types.Metadata, onProgress func(string)) error {
	if err := PrepareDestination(dest); err != nil {
		return err
	}
	args := []string{"-y", "-i", manifestURL, "-c", "copy"}
	args = append(args, metadataArgs(meta)...)
	args = append(args, dest)

	cmd := exec.CommandContext(ctx, f.bin(), args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	debugCommand(ctx, args)
	if err := cmd.Start(); err != nil {
		return &types.ExternalToolError{Tool: "ffmpeg", ExitCode: -1, Err: err}
	}

	parser := &ProgressParser{TotalSegments: totalSegments, TotalDuration: totalDuration}
	tail := &tailBuffer{max: stderrTailSize}
	// Wait closes the pipe, so stderr is drained before it is called.
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		_, _ = tail.Write([]byte(line + "\n"))
		if msg, ok := parser.Feed(line); ok && onProgress != nil {
			onProgress(msg)
		}
	}
	_, _ = io.Copy(io.Discard, stderr)

	if err := cmd.Wait(); err != nil {
		return f.exitError(ctx, err, tail.String())
	}
	return nil
}

func (f *FFmpeg) exitError(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &types.ExternalToolError{Tool: "ffmpeg", ExitCode: code, Stderr: stderr, Err: err}
}

func debugCommand(ctx context.Context, args []string) {
	logger := log.FromContext(ctx)
	if id, ok := types.JobIDFromContext(ctx); ok {
		logger = logger.With("job", id)
	}
	logger.Debug("running ffmpeg", "args", args)
}

// PrepareDestination creates the parent directories of dest and removes any
// file already there.
func PrepareDestination(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing destination: %w", err)
	}
	return nil
}

func metadataArgs(meta types.Metadata) []string {
	var args []string
	if meta.Title != "" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Date != "" {
		args = append(args, "-metadata", "date="+meta.Date)
	}
	if meta.Description != "" {
		args = append(args, "-metadata", "description="+meta.Description)
	}
	if meta.Comment != "" {
		args = append(args, "-metadata", "comment="+meta.Comment)
	}
	return args
}

// scanLines splits on '\n' or '\r'; ffmpeg rewrites its status line in
// place with carriage returns.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
