package gzip

import (
	"github.com/jonjohnsonjr/codecreg/codec"
	"github.com/jonjohnsonjr/codecreg/crc32"
	"github.com/jonjohnsonjr/codecreg/deflate"
)

// decodeStage is the top-level gzip decode state machine: HEADER, then
// BODY (delegated to the wrapped "deflate" method), then TRAILER,
// optionally looping back to HEADER for a concatenated member.
type decodeStage int

const (
	dsHeader decodeStage = iota
	dsBody
	dsTrailer
	dsDone
)

// Decoder implements codec.Coder for the gzip container format (RFC
// 1952), delegating the compressed payload to an inner DEFLATE Coder
// resolved from the same Registry the gzip method itself was registered
// through.
type Decoder struct {
	reg   *codec.Registry
	opts  *codec.Options
	inner codec.Coder

	stage decodeStage
	hr    *headerReader
	hdr   header

	memberCRC  uint32
	memberSize uint32

	trailerBuf [8]byte
	trailerNRd int

	allowMulti bool

	maxName    int
	maxComment int
	maxExtra   int

	totalOut uint64
	limits   codec.Limits

	done    bool
	lastErr *codec.Error
}

func newGzipDecoder(reg *codec.Registry, opts *codec.Options) (codec.Coder, error) {
	method, ok := reg.Find("deflate")
	if !ok || method.NewDecoder == nil {
		return nil, &codec.Error{Kind: codec.KindUnsupported, Stage: "gzip.new_decoder", Detail: "registry has no deflate decode capability"}
	}
	windowBits := opts.I64OrDefault(OptWindowBits, deflate.MaxWindowBits)
	limits := codec.ResolveLimits(opts, uint64(1)<<uint(windowBits))

	innerOpts := codec.NewOptions()
	_ = innerOpts.Set(deflate.OptWindowBits, codec.I64(windowBits))
	// Forward the resolved caps (0 meaning explicitly unlimited included)
	// so the inner deflate decoder's own per-byte checkEmitLimit enforces
	// exactly the limits the gzip caller configured, rather than silently
	// falling back to package defaults whenever the caller asked for
	// something stricter or looser than those defaults.
	_ = innerOpts.Set(codec.OptMaxOutputBytes, codec.U64(limits.MaxOutputBytes))
	_ = innerOpts.Set(codec.OptMaxMemoryBytes, codec.U64(limits.MaxMemoryBytes))
	_ = innerOpts.Set(codec.OptMaxExpansionRatio, codec.U64(limits.MaxExpansionRatio))
	inner, err := method.NewDecoder(reg, innerOpts)
	if err != nil {
		return nil, err
	}

	maxName := int(opts.U64OrDefault(OptMaxNameBytes, defaultMaxNameBytes))
	maxComment := int(opts.U64OrDefault(OptMaxCommentBytes, defaultMaxCommentBytes))
	maxExtra := int(opts.U64OrDefault(OptMaxExtraBytes, defaultMaxExtraBytes))
	return &Decoder{
		reg:        reg,
		opts:       opts,
		inner:      inner,
		hr:         newHeaderReader(maxName, maxComment, maxExtra),
		allowMulti: opts.BoolOrDefault(OptConcat, false),
		maxName:    maxName,
		maxComment: maxComment,
		maxExtra:   maxExtra,
		limits:     limits,
	}, nil
}

func (d *Decoder) Done() bool { return d.done }

func (d *Decoder) Reset() error {
	if r, ok := d.inner.(codec.Resetter); ok {
		if err := r.Reset(); err != nil {
			return err
		}
	}
	d.stage = dsHeader
	d.hr = newHeaderReader(d.maxName, d.maxComment, d.maxExtra)
	d.memberCRC = crc32.Init()
	d.memberSize = 0
	d.trailerNRd = 0
	d.totalOut = 0
	d.done = false
	d.lastErr = nil
	return nil
}

func (d *Decoder) fail(err error) error {
	if ce, ok := err.(*codec.Error); ok {
		d.lastErr = ce
	}
	return err
}

func (d *Decoder) Update(in, out *codec.Buffer) error {
	if d.lastErr != nil {
		return d.lastErr
	}
	if d.done {
		return nil
	}
	return d.run(in, out, false)
}

func (d *Decoder) Finish(in, out *codec.Buffer) error {
	if d.lastErr != nil {
		return d.lastErr
	}
	if d.done {
		return nil
	}
	if err := d.run(in, out, true); err != nil {
		return err
	}
	if !d.done {
		return d.fail(&codec.Error{Kind: codec.KindCorrupt, Stage: "gzip.finish", Detail: "truncated gzip stream"})
	}
	return nil
}

func (d *Decoder) run(in, out *codec.Buffer, finish bool) error {
	for {
		switch d.stage {
		case dsHeader:
			done, err := d.hr.step(in)
			if err != nil {
				return d.fail(err)
			}
			if !done {
				return nil
			}
			d.hdr = d.hr.hdr
			d.memberCRC = crc32.Init()
			d.memberSize = 0
			d.trailerNRd = 0
			d.stage = dsBody

		case dsBody:
			before := out.Used
			err := d.inner.Update(in, out)
			if err != nil {
				return d.fail(err)
			}
			produced := out.Data[before:out.Used]
			if len(produced) > 0 {
				d.memberCRC = crc32.Update(d.memberCRC, produced)
				d.memberSize += uint32(len(produced))
				d.totalOut += uint64(len(produced))
				if err := d.limits.CheckOutput(d.totalOut, "gzip.limits"); err != nil {
					return d.fail(err)
				}
			}
			if !d.inner.Done() {
				return nil
			}
			d.stage = dsTrailer

		case dsTrailer:
			for d.trailerNRd < 8 {
				if in.Avail() == 0 {
					return nil
				}
				d.trailerBuf[d.trailerNRd] = in.Data[in.Used]
				in.Advance(1)
				d.trailerNRd++
			}
			gotCRC := le32(d.trailerBuf[0:4])
			gotSize := le32(d.trailerBuf[4:8])
			wantCRC := crc32.Finalize(d.memberCRC)
			if gotCRC != wantCRC {
				return d.fail(&codec.Error{Kind: codec.KindCorrupt, Stage: "gzip.trailer", Detail: "CRC32 mismatch"})
			}
			if gotSize != d.memberSize {
				return d.fail(&codec.Error{Kind: codec.KindCorrupt, Stage: "gzip.trailer", Detail: "ISIZE mismatch"})
			}
			if d.allowMulti && in.Avail() > 0 {
				// Another member may follow; reset only the per-member
				// header/body/trailer state, preserving the cumulative
				// output counter across the concatenation. The wrapper
				// checks only the output cap; the expansion ratio is checked
				// by the inner decoder, whose counters restart each member.
				if r, ok := d.inner.(codec.Resetter); ok {
					if err := r.Reset(); err != nil {
						return d.fail(err)
					}
				}
				d.hr = newHeaderReader(d.maxName, d.maxComment, d.maxExtra)
				d.stage = dsHeader
				continue
			}
			if !finish && in.Avail() == 0 {
				// Ambiguous: could be a chunk boundary with more members
				// still to come, or the true end of the stream. Only
				// Finish is authoritative about end-of-stream.
				return nil
			}
			d.stage = dsDone

		case dsDone:
			d.done = true
			return nil
		}
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
