package frame

import (
	"bufio"
	"io"
)

// sourceBufferBytes sizes the buffer between the reader and the byte
// source. Decoder pipes deliver data in small write bursts; a 1 MiB buffer
// keeps per-frame read syscalls low without holding more than a fraction of
// a frame sequence in flight.
const sourceBufferBytes = 1 << 20

// Reader pulls fixed-size grayscale frames from a continuous byte source.
//
// The source is a read-once stream of concatenated width*height byte
// records with no framing or headers. Reads are strictly sequential, so
// emitted frame indices increase monotonically from 0. The reader retains
// nothing beyond the frame currently being filled.
type Reader struct {
	src       *bufio.Reader
	width     int
	height    int
	maxFrames int
	next      int
	done      bool
}

// NewReader wraps src as a frame source with the given geometry.
// maxFrames caps how many frames are read; 0 means unbounded.
func NewReader(src io.Reader, width, height, maxFrames int) (*Reader, error) {
	if width <= 0 {
		return nil, &ConfigError{Field: "width", Reason: "must be positive"}
	}
	if height <= 0 {
		return nil, &ConfigError{Field: "height", Reason: "must be positive"}
	}
	if maxFrames < 0 {
		return nil, &ConfigError{Field: "maxFrames", Reason: "cannot be negative"}
	}
	return &Reader{
		src:       bufio.NewReaderSize(src, sourceBufferBytes),
		width:     width,
		height:    height,
		maxFrames: maxFrames,
	}, nil
}

// FrameSize returns the number of pixel bytes read per frame.
func (r *Reader) FrameSize() int {
	return r.width * r.height
}

// Next reads the next frame from the source. It returns io.EOF once the
// stream is exhausted or the frame cap is reached. A short final read (the
// stream ends mid-frame) drops the partial frame and reports io.EOF; only a
// genuine source failure yields a SourceError.
func (r *Reader) Next() (Frame, error) {
	if r.done {
		return Frame{}, io.EOF
	}
	if r.maxFrames > 0 && r.next >= r.maxFrames {
		r.done = true
		return Frame{}, io.EOF
	}

	size := r.FrameSize()
	// make zero-fills, so the tail past size is already valid padding.
	data := make([]byte, PaddedSize(size))
	if _, err := io.ReadFull(r.src, data[:size]); err != nil {
		r.done = true
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, io.EOF
		}
		return Frame{}, &SourceError{Err: err}
	}

	f := Frame{Index: r.next, Width: r.width, Height: r.height, Data: data}
	r.next++
	return f, nil
}

// ReadAll drains the source and returns every complete frame in order.
// Callers on very long streams should prefer Next with a bounded window
// over materializing the whole sequence.
func (r *Reader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
