package gzip

import (
	"github.com/jonjohnsonjr/codecreg/codec"
	"github.com/jonjohnsonjr/codecreg/crc32"
	"github.com/jonjohnsonjr/codecreg/deflate"
)

// encodeStage is the top-level gzip encode state machine: HEADER, then
// BODY (delegated to the wrapped "deflate" method), then TRAILER, then
// DONE.
type encodeStage int

const (
	esHeader encodeStage = iota
	esBody
	esTrailer
	esDone
)

// Encoder implements codec.Coder for the gzip container format (RFC
// 1952), writing a single member per instance and delegating the
// compressed payload to an inner "deflate" Coder resolved from the same
// Registry.
type Encoder struct {
	reg  *codec.Registry
	opts *codec.Options

	inner codec.Coder

	stage      encodeStage
	headerBuf  []byte
	headerPos  int
	trailerBuf []byte
	trailerPos int

	crc  uint32
	size uint32

	limits   codec.Limits
	totalOut uint64

	finishCalled bool
	done         bool
	lastErr      *codec.Error
}

func newGzipEncoder(reg *codec.Registry, opts *codec.Options) (codec.Coder, error) {
	method, ok := reg.Find("deflate")
	if !ok || method.NewEncoder == nil {
		return nil, &codec.Error{Kind: codec.KindUnsupported, Stage: "gzip.new_encoder", Detail: "registry has no deflate encode capability"}
	}
	level := opts.I64OrDefault(OptLevel, deflate.DefaultLevel)
	windowBits := opts.I64OrDefault(OptWindowBits, deflate.DefaultWindowBits)
	innerOpts := codec.NewOptions()
	_ = innerOpts.Set(deflate.OptLevel, codec.I64(level))
	_ = innerOpts.Set(deflate.OptWindowBits, codec.I64(windowBits))
	inner, err := method.NewEncoder(reg, innerOpts)
	if err != nil {
		return nil, err
	}

	hdr := header{
		mtime: uint32(opts.U64OrDefault(OptMTime, 0)),
		xfl:   xflFor(opts, level),
		os:    byte(opts.U64OrDefault(OptOS, uint64(detectedOS()))),
		hcrc:  opts.BoolOrDefault(OptHeaderCRC, false),
	}
	if s, err := opts.GetString(OptName); err == nil {
		hdr.name = s
	}
	if s, err := opts.GetString(OptComment); err == nil {
		hdr.comment = s
	}
	if b, err := opts.GetBytes(OptExtra); err == nil {
		hdr.extra = b
	}

	limits := codec.ResolveLimits(opts, uint64(1)<<uint(windowBits))
	return &Encoder{
		reg:       reg,
		opts:      opts,
		inner:     inner,
		headerBuf: buildHeaderBytes(hdr),
		crc:       crc32.Init(),
		limits:    limits,
	}, nil
}

// xflFor returns the caller's explicit gzip.xfl if set, else derives XFL
// from the compression level per RFC 1952 section 2.3: 2 signals the
// slowest/best-compression algorithm setting, 4 the fastest.
func xflFor(opts *codec.Options, level int64) byte {
	if v, err := opts.GetU64(OptXFL); err == nil {
		return byte(v)
	}
	switch {
	case level >= 6:
		return 2
	case level <= 2:
		return 4
	default:
		return 0
	}
}

// Reset rebuilds a fresh inner encoder and header, for stream reuse.
func (e *Encoder) Reset() error {
	fresh, err := newGzipEncoder(e.reg, e.opts)
	if err != nil {
		return err
	}
	*e = *fresh.(*Encoder)
	return nil
}

func buildHeaderBytes(h header) []byte {
	var flags byte
	if len(h.extra) > 0 {
		flags |= flagExtra
	}
	if h.name != "" {
		flags |= flagName
	}
	if h.comment != "" {
		flags |= flagComment
	}
	if h.hcrc {
		flags |= flagHCRC
	}
	buf := make([]byte, 0, 10+len(h.extra)+2+len(h.name)+1+len(h.comment)+1+2)
	buf = append(buf, magic1, magic2, cmDeflate, flags)
	buf = append(buf,
		byte(h.mtime), byte(h.mtime>>8), byte(h.mtime>>16), byte(h.mtime>>24))
	buf = append(buf, h.xfl, h.os)
	if len(h.extra) > 0 {
		n := len(h.extra)
		buf = append(buf, byte(n), byte(n>>8))
		buf = append(buf, h.extra...)
	}
	if h.name != "" {
		buf = append(buf, []byte(h.name)...)
		buf = append(buf, 0)
	}
	if h.comment != "" {
		buf = append(buf, []byte(h.comment)...)
		buf = append(buf, 0)
	}
	if h.hcrc {
		sum := crc32.Finalize(crc32.Update(crc32.Init(), buf))
		buf = append(buf, byte(sum), byte(sum>>8))
	}
	return buf
}

func (e *Encoder) Done() bool { return e.done }

func (e *Encoder) fail(err error) error {
	if ce, ok := err.(*codec.Error); ok {
		e.lastErr = ce
	}
	return err
}

func (e *Encoder) Update(in, out *codec.Buffer) error {
	if e.lastErr != nil {
		return e.lastErr
	}
	if e.finishCalled {
		return e.fail(&codec.Error{Kind: codec.KindInvalidArg, Stage: "gzip.encode", Detail: "Update called after Finish"})
	}
	return e.run(in, out, false)
}

func (e *Encoder) Finish(in, out *codec.Buffer) error {
	if e.lastErr != nil {
		return e.lastErr
	}
	e.finishCalled = true
	return e.run(in, out, true)
}

func drain(buf []byte, pos *int, out *codec.Buffer) {
	n := copy(out.Remaining(), buf[*pos:])
	out.Advance(n)
	*pos += n
}

func (e *Encoder) run(in, out *codec.Buffer, finish bool) error {
	for {
		switch e.stage {
		case esHeader:
			drain(e.headerBuf, &e.headerPos, out)
			if e.headerPos < len(e.headerBuf) {
				return nil
			}
			e.stage = esBody

		case esBody:
			before := in.Used
			var err error
			if finish {
				err = e.inner.Finish(in, out)
			} else {
				err = e.inner.Update(in, out)
			}
			if err != nil {
				return e.fail(err)
			}
			raw := in.Data[before:in.Used]
			if len(raw) > 0 {
				e.crc = crc32.Update(e.crc, raw)
				e.size += uint32(len(raw))
			}
			if !e.inner.Done() {
				return nil
			}
			e.trailerBuf = buildTrailerBytes(crc32.Finalize(e.crc), e.size)
			e.trailerPos = 0
			e.stage = esTrailer

		case esTrailer:
			before := out.Used
			drain(e.trailerBuf, &e.trailerPos, out)
			e.totalOut += uint64(out.Used - before)
			if err := e.limits.CheckOutput(e.totalOut, "gzip.limits"); err != nil {
				return e.fail(err)
			}
			if e.trailerPos < len(e.trailerBuf) {
				return nil
			}
			e.stage = esDone

		case esDone:
			e.done = true
			return nil
		}
	}
}

func buildTrailerBytes(crc, size uint32) []byte {
	return []byte{
		byte(crc), byte(crc >> 8), byte(crc >> 16), byte(crc >> 24),
		byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24),
	}
}
