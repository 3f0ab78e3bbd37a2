package gzip

import (
	"runtime"

	"github.com/jonjohnsonjr/codecreg/codec"
	"github.com/jonjohnsonjr/codecreg/crc32"
)

// Wire constants from RFC 1952 section 2.3.
const (
	magic1    = 0x1f
	magic2    = 0x8b
	cmDeflate = 8

	flagText    = 1 << 0
	flagHCRC    = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// OS identifier bytes (RFC 1952 section 2.3.1, abridged to the values
// this implementation can actually detect).
const (
	osFAT     = 0
	osUnix    = 3
	osNTFS    = 11
	osUnknown = 255
)

func osFor(goos string) byte {
	switch goos {
	case "windows":
		return osNTFS
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "solaris", "dragonfly":
		return osUnix
	default:
		return osUnknown
	}
}

// detectedOS is the OS byte this process would write into a header it
// generates, grounded on
// archive/tar's and compress/gzip's use of runtime.GOOS-derived metadata.
func detectedOS() byte { return osFor(runtime.GOOS) }

// header is the fully-parsed (or about-to-be-written) gzip member header
// (RFC 1952 section 2.3).
type header struct {
	mtime   uint32
	xfl     byte
	os      byte
	extra   []byte
	name    string
	comment string
	hcrc    bool
}

// headerState drives the streaming header parser (the encoder builds its
// header bytes in one go instead): a fixed 10-byte section, then
// optional FEXTRA/FNAME/FCOMMENT/FHCRC sections gated by the flags byte,
// each of which must itself support suspending mid-field when it spans
// more than one Buffer's worth of input.
type headerState int

const (
	hsMagic1 headerState = iota
	hsMagic2
	hsCM
	hsFlags
	hsMTime
	hsXFL
	hsOS
	hsExtraLen
	hsExtraData
	hsName
	hsComment
	hsHCRC
	hsDone
)

// headerReader parses a gzip header incrementally from an underlying
// *codec.Buffer, byte at a time, so it can suspend at any byte boundary.
type headerReader struct {
	state headerState
	hdr   header
	flags byte

	field    []byte
	fieldLen int
	nread    int

	crc crc32Accum

	// maxName/maxComment/maxExtra cap how many bytes hsName/hsComment/
	// hsExtraData will accumulate before reporting corruption, so a
	// header with no NUL terminator (or an oversized FEXTRA length) can't
	// grow field without bound.
	maxName    int
	maxComment int
	maxExtra   int
}

// crc32Accum feeds header bytes into a running CRC for FHCRC validation.
type crc32Accum struct {
	state uint32
}

func (c *crc32Accum) init()         { c.state = crc32.Init() }
func (c *crc32Accum) update(b byte) { c.state = crc32.Update(c.state, []byte{b}) }
func (c *crc32Accum) sum16() uint16 { return uint16(crc32.Finalize(c.state)) }

func newHeaderReader(maxName, maxComment, maxExtra int) *headerReader {
	r := &headerReader{maxName: maxName, maxComment: maxComment, maxExtra: maxExtra}
	r.crc.init()
	return r
}

// step consumes as many header bytes as in has available, returning
// done=true once the full header (including any optional sections) has
// been parsed. It never errors on simple exhaustion.
func (r *headerReader) step(in *codec.Buffer) (done bool, err error) {
	readByte := func() (byte, bool) {
		if in.Avail() == 0 {
			return 0, false
		}
		b := in.Data[in.Used]
		in.Advance(1)
		r.crc.update(b)
		return b, true
	}

	for {
		switch r.state {
		case hsMagic1:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			if b != magic1 {
				return false, corruptf("bad magic byte 1: %#x", b)
			}
			r.state = hsMagic2
		case hsMagic2:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			if b != magic2 {
				return false, corruptf("bad magic byte 2: %#x", b)
			}
			r.state = hsCM
		case hsCM:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			if b != cmDeflate {
				return false, unsupportedf("unsupported compression method %d", b)
			}
			r.state = hsFlags
		case hsFlags:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			r.flags = b
			r.nread = 0
			r.state = hsMTime
		case hsMTime:
			for r.nread < 4 {
				b, ok := readByte()
				if !ok {
					return false, nil
				}
				r.hdr.mtime |= uint32(b) << (8 * uint(r.nread))
				r.nread++
			}
			r.nread = 0
			r.state = hsXFL
		case hsXFL:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			r.hdr.xfl = b
			r.state = hsOS
		case hsOS:
			b, ok := readByte()
			if !ok {
				return false, nil
			}
			r.hdr.os = b
			if r.flags&flagExtra != 0 {
				r.nread = 0
				r.state = hsExtraLen
			} else {
				r.state = hsName
			}
		case hsExtraLen:
			for r.nread < 2 {
				b, ok := readByte()
				if !ok {
					return false, nil
				}
				r.fieldLen |= int(b) << (8 * uint(r.nread))
				r.nread++
			}
			if r.fieldLen > r.maxExtra {
				return false, corruptf("FEXTRA length %d exceeds limit %d", r.fieldLen, r.maxExtra)
			}
			r.field = make([]byte, 0, r.fieldLen)
			r.state = hsExtraData
		case hsExtraData:
			for len(r.field) < r.fieldLen {
				b, ok := readByte()
				if !ok {
					return false, nil
				}
				r.field = append(r.field, b)
			}
			r.hdr.extra = r.field
			r.field = nil
			r.state = hsName
		case hsName:
			if r.flags&flagName == 0 {
				r.state = hsComment
				continue
			}
			for {
				b, ok := readByte()
				if !ok {
					return false, nil
				}
				if b == 0 {
					break
				}
				if len(r.field) >= r.maxName {
					return false, corruptf("FNAME exceeds limit %d bytes", r.maxName)
				}
				r.field = append(r.field, b)
			}
			r.hdr.name = string(r.field)
			r.field = nil
			r.state = hsComment
		case hsComment:
			if r.flags&flagComment == 0 {
				r.nread, r.fieldLen = 0, 0
				r.state = hsHCRC
				continue
			}
			for {
				b, ok := readByte()
				if !ok {
					return false, nil
				}
				if b == 0 {
					break
				}
				if len(r.field) >= r.maxComment {
					return false, corruptf("FCOMMENT exceeds limit %d bytes", r.maxComment)
				}
				r.field = append(r.field, b)
			}
			r.hdr.comment = string(r.field)
			r.field = nil
			r.nread, r.fieldLen = 0, 0
			r.state = hsHCRC
		case hsHCRC:
			if r.flags&flagHCRC == 0 {
				r.state = hsDone
				continue
			}
			// The CRC field itself must not feed the running CRC it is
			// about to be checked against, so compute the expected value
			// before consuming these two bytes.
			want := r.crc.sum16()
			for r.nread < 2 {
				b, ok := readUnaccounted(in)
				if !ok {
					return false, nil
				}
				r.fieldLen |= int(b) << (8 * uint(r.nread))
				r.nread++
			}
			if uint16(r.fieldLen) != want {
				return false, corruptf("FHCRC mismatch: got %#x want %#x", r.fieldLen, want)
			}
			r.hdr.hcrc = true
			r.state = hsDone
		case hsDone:
			return true, nil
		}
	}
}

// readUnaccounted reads one byte without feeding it into the running
// header CRC, used only for the two FHCRC bytes themselves.
func readUnaccounted(in *codec.Buffer) (byte, bool) {
	if in.Avail() == 0 {
		return 0, false
	}
	b := in.Data[in.Used]
	in.Advance(1)
	return b, true
}

func corruptf(format string, args ...interface{}) error {
	return &codec.Error{Kind: codec.KindCorrupt, Stage: "gzip.header", Detail: sprintf(format, args...)}
}

func unsupportedf(format string, args ...interface{}) error {
	return &codec.Error{Kind: codec.KindUnsupported, Stage: "gzip.header", Detail: sprintf(format, args...)}
}
