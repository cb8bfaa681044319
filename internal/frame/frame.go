// Package frame holds the grayscale frame buffer type and the streaming
// reader that produces frames from a raw byte source.
package frame

// PadAlign is the alignment every frame buffer is padded to. The widest
// vector kernel consumes 32 bytes per chunk, so buffers that are a multiple
// of 32 can always be read a full chunk at a time.
const PadAlign = 32

// Frame is one decoded grayscale image, one byte per pixel.
//
// IMMUTABILITY CONTRACT: a frame is written exactly once, by its producer,
// before being handed off. Every downstream consumer, the difference engine
// included, borrows it read-only. Nothing in this package mutates a frame
// after construction.
//
// Data holds at least Width*Height bytes and is zero padded up to the next
// multiple of PadAlign. Only the first Width*Height bytes carry pixels; the
// padding is deterministic zeros and must never influence a difference
// score.
type Frame struct {
	// Index is the zero-based position of the frame in its stream.
	// Indices increase strictly monotonically as frames are read.
	Index int

	// Width and Height are the frame geometry in pixels, fixed for the
	// whole stream.
	Width  int
	Height int

	// Data is the padded pixel buffer.
	Data []byte
}

// New copies pixels into a freshly padded buffer and wraps it as a Frame.
// pixels must hold exactly width*height bytes.
func New(index, width, height int, pixels []byte) Frame {
	data := make([]byte, PaddedSize(len(pixels)))
	copy(data, pixels)
	return Frame{Index: index, Width: width, Height: height, Data: data}
}

// PixelCount returns the number of logical pixels, Width*Height.
func (f Frame) PixelCount() int {
	return f.Width * f.Height
}

// SameGeometry reports whether two frames can be compared pixel by pixel.
func (f Frame) SameGeometry(other Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// PaddedSize returns n rounded up to the next multiple of PadAlign.
func PaddedSize(n int) int {
	if rem := n % PadAlign; rem != 0 {
		return n + PadAlign - rem
	}
	return n
}
