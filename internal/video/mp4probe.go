package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mp4 "github.com/Eyevinn/mp4ff/mp4"
)

// isMP4 reports whether the file extension marks an MP4 family container.
func isMP4(input string) bool {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".mp4", ".m4v", ".mov":
		return true
	}
	return false
}

// probeMP4 reads the container metadata directly, sparing an ffprobe spawn
// for the common case. Fragmented files have no usable track summary and are
// handed back to ffprobe.
func probeMP4(input string) (ProbeResult, error) {
	f, err := os.Open(input)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer f.Close()

	parsed, err := mp4.DecodeFile(f)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse container: %w", err)
	}
	if parsed.IsFragmented() {
		return ProbeResult{}, fmt.Errorf("fragmented container in %s", input)
	}
	if parsed.Moov == nil {
		return ProbeResult{}, fmt.Errorf("no moov box in %s", input)
	}

	for _, trak := range parsed.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		var res ProbeResult
		if stbl := trak.Mdia.Minf.Stbl; stbl != nil && stbl.Stsd != nil {
			for _, child := range stbl.Stsd.Children {
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
					res.Width = int(vse.Width)
					res.Height = int(vse.Height)
					break
				}
			}
			if stbl.Stsz != nil {
				res.FrameCount = int(stbl.Stsz.SampleNumber)
			}
		}
		if res.Width == 0 && trak.Tkhd != nil {
			res.Width = int(trak.Tkhd.Width >> 16)
			res.Height = int(trak.Tkhd.Height >> 16)
		}
		if res.Width <= 0 || res.Height <= 0 {
			return ProbeResult{}, fmt.Errorf("no geometry in video track of %s", input)
		}

		if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 {
			res.Duration = float64(mdhd.Duration) / float64(mdhd.Timescale)
			if res.Duration > 0 && res.FrameCount > 0 {
				res.FPS = float64(res.FrameCount) / res.Duration
			}
		}
		return res, nil
	}
	return ProbeResult{}, fmt.Errorf("no video track in %s", input)
}
