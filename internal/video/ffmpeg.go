// Package video wraps the external ffmpeg/ffprobe collaborators: decoding a
// video file into the raw grayscale byte stream the frame reader consumes,
// probing stream geometry and frame rate, and exporting keyframe stills.
// Nothing here touches image codecs; the heavy lifting stays in the child
// process.
package video

import (
	"fmt"
	"os"
	"os/exec"
)

// FindFFmpeg locates the ffmpeg binary via PATH, then common install
// locations.
func FindFFmpeg() (string, error) {
	return findTool("ffmpeg")
}

// FindFFprobe locates the ffprobe binary via PATH, then common install
// locations.
func FindFFprobe() (string, error) {
	return findTool("ffprobe")
}

func findTool(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	common := []string{
		"/usr/bin/" + name,
		"/usr/local/bin/" + name,
		"/opt/homebrew/bin/" + name,
		"/opt/local/bin/" + name,
	}
	for _, path := range common {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// stderrTail returns the last max bytes of a diagnostic buffer, enough for
// an error message without dumping a whole transcode log.
func stderrTail(buf []byte, max int) string {
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return string(buf)
}
