package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// Decoder streams a video file as raw 8-bit grayscale bytes by running
// ffmpeg as a child process. It implements io.Reader over the child's
// stdout: width*height bytes per frame, frames concatenated, no headers.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
}

// decodeArgs builds the ffmpeg invocation that emits rawvideo grayscale on
// stdout with audio stripped.
func decodeArgs(input string) []string {
	return []string{
		"-i", input,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-an",
		"-",
	}
}

// StartDecoder spawns the decoding process. Callers must Close the decoder
// once the stream is drained; cancelling ctx kills the child.
func StartDecoder(ctx context.Context, input string) (*Decoder, error) {
	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}

	d := &Decoder{}
	d.cmd = exec.CommandContext(ctx, ffmpegPath, decodeArgs(input)...)
	d.cmd.Stderr = &d.stderr

	d.stdout, err = d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder pipe: %w", err)
	}
	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	slog.Debug("Decoder started", "input", input, "pid", d.cmd.Process.Pid)
	return d, nil
}

// Read pulls raw grayscale bytes from the decoder output.
func (d *Decoder) Read(p []byte) (int, error) {
	return d.stdout.Read(p)
}

// Close reaps the child process. A non-zero exit after the stream was fully
// consumed is reported with the tail of the child's stderr; callers that
// stopped reading early (frame cap) should expect and may ignore it.
func (d *Decoder) Close() error {
	d.stdout.Close()
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited abnormally: %w: %s", err, stderrTail(d.stderr.Bytes(), 512))
	}
	return nil
}
