package codec

// Stream is the opaque encoder/decoder instance: a pointer to the method
// descriptor, a back-pointer to the registry, a pointer to (non-owning)
// options, the method-private Coder, and the status/error-detail channel.
// Lifecycle: created -> (Update | Finish)* -> Destroy. After Finish reaches
// its terminal state further Update is undefined; Reset (if supported)
// returns the instance to its post-create state and clears the error
// channel.
type Stream struct {
	method *Method
	reg    *Registry
	opts   *Options
	coder  Coder

	lastErr *Error
	done    bool
}

func lookupForCapability(reg *Registry, name string, need Capability) (*Method, error) {
	if reg == nil {
		return nil, newError(KindInvalidArg, "stream.create", "nil registry")
	}
	m, ok := reg.Find(name)
	if !ok {
		return nil, newError(KindUnsupported, "stream.create", "unknown method %q", name)
	}
	if !m.Capabilities.Has(need) {
		return nil, newError(KindUnsupported, "stream.create", "method %q does not support this capability", name)
	}
	return m, nil
}

func validateOpts(m *Method, opts *Options) error {
	if m.Schema == nil {
		return nil
	}
	return Validate(opts, m.Schema)
}

// EncoderCreate finds name in reg, requires the Encode capability and a
// non-nil factory, validates opts against the method's schema, and calls
// the factory.
func EncoderCreate(reg *Registry, name string, opts *Options) (*Stream, error) {
	m, err := lookupForCapability(reg, name, CapEncode)
	if err != nil {
		return nil, err
	}
	if m.NewEncoder == nil {
		return nil, newError(KindUnsupported, "stream.create", "method %q has no encoder factory", name)
	}
	if err := validateOpts(m, opts); err != nil {
		return nil, err
	}
	coder, err := m.NewEncoder(reg, opts)
	if err != nil {
		return nil, err
	}
	return &Stream{method: m, reg: reg, opts: opts, coder: coder}, nil
}

// DecoderCreate is the decode-side symmetric counterpart of EncoderCreate.
func DecoderCreate(reg *Registry, name string, opts *Options) (*Stream, error) {
	m, err := lookupForCapability(reg, name, CapDecode)
	if err != nil {
		return nil, err
	}
	if m.NewDecoder == nil {
		return nil, newError(KindUnsupported, "stream.create", "method %q has no decoder factory", name)
	}
	if err := validateOpts(m, opts); err != nil {
		return nil, err
	}
	coder, err := m.NewDecoder(reg, opts)
	if err != nil {
		return nil, err
	}
	return &Stream{method: m, reg: reg, opts: opts, coder: coder}, nil
}

// argCheck validates the instance/buffer non-null requirement common to
// Update and Finish.
func (s *Stream) argCheck(in, out *Buffer) error {
	if s == nil || s.coder == nil {
		return newError(KindInvalidArg, "stream.update", "nil stream instance")
	}
	if in == nil || out == nil {
		return newError(KindInvalidArg, "stream.update", "nil buffer")
	}
	return nil
}

// Update advances the stream by dispatching to the method's Update hook.
// A stream that is already terminal (lastErr set) returns that same
// status without mutating either buffer's Used field.
func (s *Stream) Update(in, out *Buffer) error {
	if err := s.argCheck(in, out); err != nil {
		return err
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	if err := s.coder.Update(in, out); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}

// Finish is monotone: once the coder reports Done, further calls are a
// no-op returning success.
func (s *Stream) Finish(in, out *Buffer) error {
	if err := s.argCheck(in, out); err != nil {
		return err
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	if s.done {
		return nil
	}
	if err := s.coder.Finish(in, out); err != nil {
		s.setErr(err)
		return err
	}
	if s.coder.Done() {
		s.done = true
	}
	return nil
}

// Done reports whether Finish has reached the coder's terminal state.
func (s *Stream) Done() bool {
	return s.done
}

// Reset clears the error channel and calls the method's reset hook, or
// reports KindUnsupported if the Coder doesn't implement Resetter.
func (s *Stream) Reset() error {
	r, ok := s.coder.(Resetter)
	if !ok {
		return newError(KindUnsupported, "stream.reset", "method %q does not support reset", s.method.Name)
	}
	if err := r.Reset(); err != nil {
		s.setErr(err)
		return err
	}
	s.lastErr = nil
	s.done = false
	return nil
}

// Destroy is null-safe. Method-owned resources are reclaimed by the
// garbage collector; Destroy exists to make use-after-destroy a detectable
// bug rather than silent reuse.
func (s *Stream) Destroy() {
	if s == nil {
		return
	}
	s.coder = nil
}

// LastError returns the status stored by the most recent failing
// Update/Finish/Reset call, or nil.
func (s *Stream) LastError() *Error {
	return s.lastErr
}

// setErr stores a formatted status and returns it, for return-chaining.
func (s *Stream) setErr(err error) *Error {
	if e, ok := err.(*Error); ok {
		s.lastErr = e
		return e
	}
	e := newError(KindInternal, "stream", "%v", err)
	s.lastErr = e
	return e
}
