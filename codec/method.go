package codec

// Capability bits a method descriptor advertises.
type Capability uint8

const (
	CapEncode Capability = 1 << iota
	CapDecode
)

func (c Capability) Has(bit Capability) bool { return c&bit != 0 }

// EncoderFactory builds a method-private encoder instance. reg is the
// registry the instance was created through (so wrapper methods, like
// gzip, can resolve an inner method by name), opts is the caller's
// options (already schema-validated by the time Stream calls this).
type EncoderFactory func(reg *Registry, opts *Options) (Coder, error)

// DecoderFactory is the decode-side equivalent of EncoderFactory.
type DecoderFactory func(reg *Registry, opts *Options) (Coder, error)

// Coder is the uniform shape every method-private encoder/decoder state
// implements: a struct owning a boxed interface value, rather than a
// base-instance the factory might replace wholesale.
type Coder interface {
	// Update consumes from in and/or produces into out, advancing both
	// Buffers' Used fields. It never blocks and returns as soon as either
	// buffer is exhausted or a natural suspension point is reached.
	Update(in, out *Buffer) error

	// Finish signals that no more input will arrive (for an encoder) or
	// requests the decoder reach its terminal state. It may still need to
	// be called multiple times if out cannot hold everything at once; in
	// that case it returns nil without having reached the terminal state,
	// and Done reports false.
	Finish(in, out *Buffer) error

	// Done reports whether Finish has reached its terminal state.
	Done() bool
}

// Resetter is implemented by Coders that support Reset. Coders that don't
// support it simply don't implement this interface; Stream.Reset reports
// KindUnsupported in that case.
type Resetter interface {
	Reset() error
}

// Method is the immutable, process-lifetime method descriptor. Name must
// be unique within a Registry.
type Method struct {
	// ABIVersion and StructSize are informational only in Go; they exist
	// so a descriptor can be compared/logged across builds.
	ABIVersion int
	StructSize int

	Name         string
	Capabilities Capability

	NewEncoder EncoderFactory
	NewDecoder DecoderFactory

	// Schema, if non-nil, is consulted by Validate for this method's
	// options.
	Schema *Schema
}
