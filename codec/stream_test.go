package codec

import "testing"

// echoCoder is a minimal Coder used to exercise the Stream lifecycle
// without pulling in deflate/gzip: it copies as much input to output as
// fits and becomes Done once Finish is called with no bytes left.
type echoCoder struct {
	finished bool
	resets   int
}

func (c *echoCoder) Update(in, out *Buffer) error {
	n := copy(out.Remaining(), in.Remaining())
	in.Advance(n)
	out.Advance(n)
	return nil
}

func (c *echoCoder) Finish(in, out *Buffer) error {
	n := copy(out.Remaining(), in.Remaining())
	in.Advance(n)
	out.Advance(n)
	if in.Avail() == 0 {
		c.finished = true
	}
	return nil
}

func (c *echoCoder) Done() bool { return c.finished }

func (c *echoCoder) Reset() error {
	c.finished = false
	c.resets++
	return nil
}

func echoRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Method{
		Name:         "echo",
		Capabilities: CapEncode | CapDecode,
		NewEncoder: func(reg *Registry, opts *Options) (Coder, error) {
			return &echoCoder{}, nil
		},
		NewDecoder: func(reg *Registry, opts *Options) (Coder, error) {
			return &echoCoder{}, nil
		},
	})
	return r
}

func TestStreamLifecycle(t *testing.T) {
	r := echoRegistry()
	s, err := EncoderCreate(r, "echo", nil)
	if err != nil {
		t.Fatalf("EncoderCreate: %v", err)
	}

	in := &Buffer{Data: []byte("hello")}
	out := &Buffer{Data: make([]byte, 5)}
	if err := s.Update(in, out); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if in.Used != 5 || out.Used != 5 {
		t.Fatalf("Update: in.Used=%d out.Used=%d, want 5,5", in.Used, out.Used)
	}

	in2 := &Buffer{}
	out2 := &Buffer{Data: make([]byte, 1)}
	if err := s.Finish(in2, out2); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !s.Done() {
		t.Fatal("Finish: expected Done() true")
	}

	// Finish is monotone.
	if err := s.Finish(in2, out2); err != nil {
		t.Fatalf("Finish (again): %v", err)
	}

	s.Destroy()
	s.Destroy() // null/double-destroy safe
}

func TestUnknownMethod(t *testing.T) {
	r := NewRegistry()
	if _, err := EncoderCreate(r, "nope", nil); err == nil {
		t.Fatal("EncoderCreate: expected unsupported error")
	} else if e := err.(*Error); e.Kind != KindUnsupported {
		t.Fatalf("EncoderCreate: got kind %v, want KindUnsupported", e.Kind)
	}
}

func TestCapabilityMismatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&Method{Name: "encodeonly", Capabilities: CapEncode, NewEncoder: func(*Registry, *Options) (Coder, error) {
		return &echoCoder{}, nil
	}})
	if _, err := DecoderCreate(r, "encodeonly", nil); err == nil {
		t.Fatal("DecoderCreate: expected unsupported error")
	}
}

func TestResetClearsErrorAndState(t *testing.T) {
	r := echoRegistry()
	s, err := EncoderCreate(r, "echo", nil)
	if err != nil {
		t.Fatalf("EncoderCreate: %v", err)
	}

	empty := &Buffer{}
	if err := s.Finish(empty, empty); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !s.Done() {
		t.Fatal("expected Done before Reset")
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Done() {
		t.Fatal("Reset: expected Done() false afterward")
	}
}

func TestNilArgsRejected(t *testing.T) {
	r := echoRegistry()
	s, err := EncoderCreate(r, "echo", nil)
	if err != nil {
		t.Fatalf("EncoderCreate: %v", err)
	}
	if err := s.Update(nil, &Buffer{}); err == nil {
		t.Fatal("Update(nil, ...): expected error")
	}
	if err := (*Stream)(nil).Update(&Buffer{}, &Buffer{}); err == nil {
		t.Fatal("Update on nil stream: expected error")
	}
}
