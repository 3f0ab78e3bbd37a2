package deflate

import "github.com/jonjohnsonjr/codecreg/codec"

// Option keys for the "deflate" method, including the dictionary option
// supplemented from zlib's deflateSetDictionary/inflateSetDictionary.
const (
	OptLevel      = "deflate.level"
	OptWindowBits = "deflate.window_bits"
	OptStrategy   = "deflate.strategy"
	OptDictionary = "deflate.dictionary"

	DefaultLevel      = int64(6)
	DefaultWindowBits = int64(15)
	MinWindowBits     = int64(8)
	MaxWindowBits     = int64(15)
)

// Strategy values for deflate.strategy; only StrategyDefault affects this
// implementation's behavior today, the others are accepted (so callers
// written against a richer encoder don't fail schema validation) and
// treated the same as StrategyDefault.
const (
	StrategyDefault     = "default"
	StrategyFiltered    = "filtered"
	StrategyHuffmanOnly = "huffman_only"
)

func schema() *codec.Schema {
	return &codec.Schema{
		Unknown: codec.UnknownError,
		Entries: []codec.SchemaEntry{
			{Key: OptLevel, Kind: codec.KindI64, Default: ptrI64(codec.I64(DefaultLevel)), Min: ptrI64(codec.I64(0)), Max: ptrI64(codec.I64(9)), Help: "compression level 0 (store) to 9 (max)"},
			{Key: OptWindowBits, Kind: codec.KindI64, Default: ptrI64(codec.I64(DefaultWindowBits)), Min: ptrI64(codec.I64(MinWindowBits)), Max: ptrI64(codec.I64(MaxWindowBits)), Help: "log2 of the sliding window size"},
			{Key: OptStrategy, Kind: codec.KindString, Default: ptrStr(codec.Str(StrategyDefault)), Help: "match-finding strategy hint"},
			{Key: OptDictionary, Kind: codec.KindBytes, Help: "preset dictionary bytes"},
			{Key: codec.OptMaxOutputBytes, Kind: codec.KindU64, Help: "bytes produced limit"},
			{Key: codec.OptMaxMemoryBytes, Kind: codec.KindU64, Help: "tracked allocation limit"},
			{Key: codec.OptMaxWindowBytes, Kind: codec.KindU64, Help: "window size limit"},
			{Key: codec.OptMaxExpansionRatio, Kind: codec.KindU64, Help: "output/input ratio limit"},
		},
	}
}

func ptrI64(v codec.Value) *codec.Value { return &v }
func ptrStr(v codec.Value) *codec.Value { return &v }

// newDecoder is the codec.DecoderFactory for the "deflate" method.
func newDecoder(reg *codec.Registry, opts *codec.Options) (codec.Coder, error) {
	windowBits := int(opts.I64OrDefault(OptWindowBits, DefaultWindowBits))
	limits := codec.ResolveLimits(opts, uint64(1)<<uint(windowBits))
	if err := limits.CheckWindow(uint64(1)<<uint(windowBits), "deflate.new_decoder"); err != nil {
		return nil, err
	}
	d := NewDecoder(windowBits, limits)
	if dict, err := opts.GetBytes(OptDictionary); err == nil && len(dict) > 0 {
		d.SeedDictionary(dict)
	}
	return d, nil
}

// newEncoder is the codec.EncoderFactory for the "deflate" method.
func newEncoder(reg *codec.Registry, opts *codec.Options) (codec.Coder, error) {
	level := int(opts.I64OrDefault(OptLevel, DefaultLevel))
	windowBits := int(opts.I64OrDefault(OptWindowBits, DefaultWindowBits))
	limits := codec.ResolveLimits(opts, uint64(1)<<uint(windowBits))
	if err := limits.CheckWindow(uint64(1)<<uint(windowBits), "deflate.new_encoder"); err != nil {
		return nil, err
	}
	e := NewEncoder(level, windowBits, limits)
	if dict, err := opts.GetBytes(OptDictionary); err == nil && len(dict) > 0 {
		e.SeedDictionary(dict)
	}
	return e, nil
}

// Register installs the "deflate" method into reg. Idempotent: a second
// call is a no-op.
func Register(reg *codec.Registry) {
	reg.Register(&codec.Method{
		ABIVersion:   1,
		Name:         "deflate",
		Capabilities: codec.CapEncode | codec.CapDecode,
		NewEncoder:   newEncoder,
		NewDecoder:   newDecoder,
		Schema:       schema(),
	})
}
