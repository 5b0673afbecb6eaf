package chunker

const (
	// DefaultMaxChunkSize is the default maximum chunk length in characters.
	DefaultMaxChunkSize = 10000

	// DefaultOverlapSize is the default overlap length shared between
	// neighboring chunks.
	DefaultOverlapSize = 500
)

// Options configures how a document is split into chunks.
type Options struct {
	// MaxChunkSize is the maximum length of a chunk's content.
	MaxChunkSize int

	// OverlapSize is how many characters of the previous chunk's tail are
	// repeated at the start of the next chunk.
	OverlapSize int

	// PreserveSemanticBoundaries selects semantic (sentence-aware)
	// chunking. When false, the fixed-width sliding window is used.
	PreserveSemanticBoundaries bool
}

// DefaultOptions returns Options with the standard defaults.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize:               DefaultMaxChunkSize,
		OverlapSize:                DefaultOverlapSize,
		PreserveSemanticBoundaries: true,
	}
}

// normalize replaces invalid option values with safe ones.
// An overlap at or above the window size would prevent forward progress,
// so it is clamped to half the window.
func (o Options) normalize() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.OverlapSize < 0 {
		o.OverlapSize = DefaultOverlapSize
	}
	if o.OverlapSize >= o.MaxChunkSize {
		o.OverlapSize = o.MaxChunkSize / 2
	}
	return o
}
