package gzip

import (
	"github.com/jonjohnsonjr/codecreg/codec"
	"github.com/jonjohnsonjr/codecreg/deflate"
)

// Option keys for the "gzip" method. Compression level and window size
// reuse the "deflate" method's own keys verbatim, since both name the same
// inner-codec knob the gzip wrapper just forwards.
const (
	OptLevel           = deflate.OptLevel
	OptWindowBits      = deflate.OptWindowBits
	OptMTime           = "gzip.mtime"
	OptOS              = "gzip.os"
	OptXFL             = "gzip.xfl"
	OptName            = "gzip.name"
	OptComment         = "gzip.comment"
	OptExtra           = "gzip.extra"
	OptHeaderCRC       = "gzip.header_crc"
	OptConcat          = "gzip.concat"
	OptMaxNameBytes    = "gzip.max_name_bytes"
	OptMaxCommentBytes = "gzip.max_comment_bytes"
	OptMaxExtraBytes   = "gzip.max_extra_bytes"
)

const (
	defaultMaxNameBytes    = 1 << 20
	defaultMaxCommentBytes = 1 << 20
	defaultMaxExtraBytes   = 64 << 10
)

func schema() *codec.Schema {
	return &codec.Schema{
		Unknown: codec.UnknownError,
		Entries: []codec.SchemaEntry{
			{Key: OptLevel, Kind: codec.KindI64, Default: ptr(codec.I64(deflate.DefaultLevel)), Min: ptr(codec.I64(0)), Max: ptr(codec.I64(9)), Help: "compression level 0 (store) to 9 (max)"},
			{Key: OptWindowBits, Kind: codec.KindI64, Default: ptr(codec.I64(deflate.DefaultWindowBits)), Min: ptr(codec.I64(deflate.MinWindowBits)), Max: ptr(codec.I64(deflate.MaxWindowBits)), Help: "log2 of the inner deflate window size"},
			{Key: OptMTime, Kind: codec.KindU64, Help: "seconds since the Unix epoch, stored in the header"},
			{Key: OptOS, Kind: codec.KindU64, Help: "RFC 1952 OS identifier byte; auto-detected via runtime.GOOS if unset"},
			{Key: OptXFL, Kind: codec.KindU64, Help: "header XFL byte; derived from level if unset"},
			{Key: OptName, Kind: codec.KindString, Help: "original file name (FNAME)"},
			{Key: OptComment, Kind: codec.KindString, Help: "free-text comment (FCOMMENT)"},
			{Key: OptExtra, Kind: codec.KindBytes, Help: "FEXTRA field payload"},
			{Key: OptHeaderCRC, Kind: codec.KindBool, Default: ptr(codec.Bool(false)), Help: "emit/validate FHCRC"},
			{Key: OptConcat, Kind: codec.KindBool, Default: ptr(codec.Bool(false)), Help: "decoder: accept concatenated members as one logical stream"},
			{Key: OptMaxNameBytes, Kind: codec.KindU64, Default: ptr(codec.U64(defaultMaxNameBytes)), Help: "decoder safety cap on FNAME length"},
			{Key: OptMaxCommentBytes, Kind: codec.KindU64, Default: ptr(codec.U64(defaultMaxCommentBytes)), Help: "decoder safety cap on FCOMMENT length"},
			{Key: OptMaxExtraBytes, Kind: codec.KindU64, Default: ptr(codec.U64(defaultMaxExtraBytes)), Help: "decoder safety cap on FEXTRA length"},
			{Key: codec.OptMaxOutputBytes, Kind: codec.KindU64, Help: "bytes produced limit"},
			{Key: codec.OptMaxMemoryBytes, Kind: codec.KindU64, Help: "tracked allocation limit"},
			{Key: codec.OptMaxWindowBytes, Kind: codec.KindU64, Help: "window size limit"},
			{Key: codec.OptMaxExpansionRatio, Kind: codec.KindU64, Help: "output/input ratio limit"},
		},
	}
}

func ptr(v codec.Value) *codec.Value { return &v }

// Register installs the "gzip" method into reg. Idempotent: a second call
// is a no-op. The "deflate" method must already be registered in reg,
// since gzip resolves and wraps it by name.
func Register(reg *codec.Registry) {
	reg.Register(&codec.Method{
		ABIVersion:   1,
		Name:         "gzip",
		Capabilities: codec.CapEncode | codec.CapDecode,
		NewEncoder:   newGzipEncoder,
		NewDecoder:   newGzipDecoder,
		Schema:       schema(),
	})
}
