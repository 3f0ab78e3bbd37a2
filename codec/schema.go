package codec

import "fmt"

// UnknownPolicy governs how Validate treats an options key the schema does
// not list.
type UnknownPolicy int

const (
	UnknownError UnknownPolicy = iota
	UnknownIgnore
)

// SchemaEntry describes one recognized option key: its type, an optional
// default, optional numeric bounds (meaningful only for I64/U64/F64), and a
// help string for documentation/introspection.
type SchemaEntry struct {
	Key     string
	Kind    ValueKind
	Default *Value
	Min     *Value
	Max     *Value
	Help    string
}

// Schema is the ordered per-method option contract.
type Schema struct {
	Entries []SchemaEntry
	Unknown UnknownPolicy
}

func (s *Schema) find(key string) *SchemaEntry {
	if s == nil {
		return nil
	}
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			return &s.Entries[i]
		}
	}
	return nil
}

// ValidateKey checks one key/value pair against the schema.
func (s *Schema) ValidateKey(key string, v Value) error {
	entry := s.find(key)
	if entry == nil {
		if s != nil && s.Unknown == UnknownIgnore {
			return nil
		}
		return newError(KindInvalidArg, "schema.validate", "unknown option key %q", key)
	}
	if entry.Kind != v.Kind {
		return newError(KindInvalidArg, "schema.validate", "key %q: expected %s, got %s", key, entry.Kind, v.Kind)
	}
	return rangeCheck(entry, v)
}

func rangeCheck(entry *SchemaEntry, v Value) error {
	switch v.Kind {
	case KindI64:
		if entry.Min != nil && v.I < entry.Min.I {
			return newError(KindInvalidArg, "schema.validate", "key %q: %d below minimum %d", entry.Key, v.I, entry.Min.I)
		}
		if entry.Max != nil && v.I > entry.Max.I {
			return newError(KindInvalidArg, "schema.validate", "key %q: %d above maximum %d", entry.Key, v.I, entry.Max.I)
		}
	case KindU64:
		if entry.Min != nil && v.U < entry.Min.U {
			return newError(KindInvalidArg, "schema.validate", "key %q: %d below minimum %d", entry.Key, v.U, entry.Min.U)
		}
		if entry.Max != nil && v.U > entry.Max.U {
			return newError(KindInvalidArg, "schema.validate", "key %q: %d above maximum %d", entry.Key, v.U, entry.Max.U)
		}
	case KindF64:
		if entry.Min != nil && v.F < entry.Min.F {
			return newError(KindInvalidArg, "schema.validate", "key %q: %g below minimum %g", entry.Key, v.F, entry.Min.F)
		}
		if entry.Max != nil && v.F > entry.Max.F {
			return newError(KindInvalidArg, "schema.validate", "key %q: %g above maximum %g", entry.Key, v.F, entry.Max.F)
		}
	}
	return nil
}

// Validate walks every entry stored in opts against schema, applying range
// checks and the unknown-key policy.
func Validate(opts *Options, schema *Schema) error {
	if opts == nil {
		return nil
	}
	for _, key := range opts.Keys() {
		v, err := opts.Get(key)
		if err != nil {
			return err
		}
		if err := schema.ValidateKey(key, v); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults returns a new Options with schema defaults filled in for
// any entry opts does not already set. opts itself is left untouched.
func ApplyDefaults(opts *Options, schema *Schema) *Options {
	var out *Options
	if opts != nil {
		out = opts.Clone()
	} else {
		out = NewOptions()
	}
	if schema == nil {
		return out
	}
	for _, entry := range schema.Entries {
		if out.Has(entry.Key) || entry.Default == nil {
			continue
		}
		// Clone defensively: schema entries are shared, process-lifetime data.
		_ = out.Set(entry.Key, entry.Default.clone())
	}
	return out
}

func (s *SchemaEntry) String() string {
	return fmt.Sprintf("%s:%s", s.Key, s.Kind)
}
