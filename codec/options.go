package codec

import "golang.org/x/exp/maps"

// Options is a dotted-string-key -> tagged Value map. The zero value is a
// valid, empty, unfrozen Options.
type Options struct {
	entries map[string]Value
	frozen  bool
}

// NewOptions returns an empty, unfrozen Options ready for Set calls.
func NewOptions() *Options {
	return &Options{entries: make(map[string]Value)}
}

// Set stores v under key. It fails with KindInvalidArg if o is frozen.
func (o *Options) Set(key string, v Value) error {
	if o.frozen {
		return newError(KindInvalidArg, "options.set", "options are frozen: key %q", key)
	}
	if o.entries == nil {
		o.entries = make(map[string]Value)
	}
	o.entries[key] = v.clone()
	return nil
}

// Get returns the raw Value for key, or KindInvalidArg if absent.
func (o *Options) Get(key string) (Value, error) {
	v, ok := o.entries[key]
	if !ok {
		return Value{}, newError(KindInvalidArg, "options.get", "missing key %q", key)
	}
	return v, nil
}

// getTyped is the shared lookup-plus-type-check path every typed getter
// below funnels through, so "missing key" and "type mismatch" both surface
// as KindInvalidArg.
func (o *Options) getTyped(key string, want ValueKind) (Value, error) {
	v, err := o.Get(key)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != want {
		return Value{}, newError(KindInvalidArg, "options.get", "key %q is %s, not %s", key, v.Kind, want)
	}
	return v, nil
}

func (o *Options) GetI64(key string) (int64, error) {
	v, err := o.getTyped(key, KindI64)
	if err != nil {
		return 0, err
	}
	return v.I, nil
}

func (o *Options) GetU64(key string) (uint64, error) {
	v, err := o.getTyped(key, KindU64)
	if err != nil {
		return 0, err
	}
	return v.U, nil
}

func (o *Options) GetBool(key string) (bool, error) {
	v, err := o.getTyped(key, KindBool)
	if err != nil {
		return false, err
	}
	return v.B, nil
}

func (o *Options) GetString(key string) (string, error) {
	v, err := o.getTyped(key, KindString)
	if err != nil {
		return "", err
	}
	return v.S, nil
}

func (o *Options) GetBytes(key string) ([]byte, error) {
	v, err := o.getTyped(key, KindBytes)
	if err != nil {
		return nil, err
	}
	return v.Byt, nil
}

func (o *Options) GetF64(key string) (float64, error) {
	v, err := o.getTyped(key, KindF64)
	if err != nil {
		return 0, err
	}
	return v.F, nil
}

// Has reports whether key is present, regardless of type.
func (o *Options) Has(key string) bool {
	_, ok := o.entries[key]
	return ok
}

// Keys returns the set of present keys in unspecified order.
func (o *Options) Keys() []string {
	return maps.Keys(o.entries)
}

// Clone deep-copies o, preserving the frozen bit.
func (o *Options) Clone() *Options {
	clone := &Options{
		entries: make(map[string]Value, len(o.entries)),
		frozen:  o.frozen,
	}
	for k, v := range o.entries {
		clone.entries[k] = v.clone()
	}
	return clone
}

// Freeze makes o immutable. Idempotent.
func (o *Options) Freeze() {
	o.frozen = true
}

// Frozen reports whether Freeze has been called.
func (o *Options) Frozen() bool {
	return o.frozen
}

// U64OrDefault reads a u64 option, falling back to def when the key is
// absent. Used pervasively by limits.go and the codec packages for the
// "zero = unlimited, falling back to caller-supplied defaults" rule.
func (o *Options) U64OrDefault(key string, def uint64) uint64 {
	if o == nil {
		return def
	}
	v, err := o.GetU64(key)
	if err != nil {
		return def
	}
	return v
}

func (o *Options) I64OrDefault(key string, def int64) int64 {
	if o == nil {
		return def
	}
	v, err := o.GetI64(key)
	if err != nil {
		return def
	}
	return v
}

func (o *Options) BoolOrDefault(key string, def bool) bool {
	if o == nil {
		return def
	}
	v, err := o.GetBool(key)
	if err != nil {
		return def
	}
	return v
}

func (o *Options) StringOrDefault(key string, def string) string {
	if o == nil {
		return def
	}
	v, err := o.GetString(key)
	if err != nil {
		return def
	}
	return v
}
