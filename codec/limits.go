package codec

import "math"

// Option keys recognized for resource limits.
const (
	OptMaxOutputBytes    = "limits.max_output_bytes"
	OptMaxMemoryBytes    = "limits.max_memory_bytes"
	OptMaxWindowBytes    = "limits.max_window_bytes"
	OptMaxExpansionRatio = "limits.max_expansion_ratio"
)

// Standard defaults applied when a limit key is unset.
const (
	DefaultMaxOutputBytes    uint64 = 512 << 20  // 512 MiB
	DefaultMaxMemoryBytes    uint64 = 256 << 20  // 256 MiB
	DefaultMaxExpansionRatio uint64 = 1000
)

// Limits is the resolved (option-or-default) view of the four resource
// caps. MaxWindowBytes has no universal default; each method supplies its
// own method-specific default.
type Limits struct {
	MaxOutputBytes    uint64 // 0 = unlimited
	MaxMemoryBytes    uint64 // 0 = unlimited
	MaxWindowBytes    uint64 // 0 = unlimited
	MaxExpansionRatio uint64 // 0 = unlimited
}

// ResolveLimits reads the four limit keys from opts, falling back to the
// supplied defaults for anything unset or absent. Pass defaultWindow as
// the method-specific default for MaxWindowBytes (0 to leave it
// unlimited by default).
func ResolveLimits(opts *Options, defaultWindow uint64) Limits {
	return Limits{
		MaxOutputBytes:    opts.U64OrDefault(OptMaxOutputBytes, DefaultMaxOutputBytes),
		MaxMemoryBytes:    opts.U64OrDefault(OptMaxMemoryBytes, DefaultMaxMemoryBytes),
		MaxWindowBytes:    opts.U64OrDefault(OptMaxWindowBytes, defaultWindow),
		MaxExpansionRatio: opts.U64OrDefault(OptMaxExpansionRatio, DefaultMaxExpansionRatio),
	}
}

// CheckOutput returns KindLimit if cumulativeOutput exceeds MaxOutputBytes.
func (l Limits) CheckOutput(cumulativeOutput uint64, stage string) error {
	if l.MaxOutputBytes == 0 {
		return nil
	}
	if cumulativeOutput > l.MaxOutputBytes {
		return newError(KindLimit, stage, "output %d exceeds max_output_bytes %d", cumulativeOutput, l.MaxOutputBytes)
	}
	return nil
}

// CheckExpansionRatio implements the overflow-guarded "output > ratio *
// input" check: if ratio*input would overflow uint64, the limit is treated
// as effectively infinite for that input size and the check passes. When
// input == 0 the check also passes (there is no ratio to exceed yet).
func (l Limits) CheckExpansionRatio(cumulativeInput, cumulativeOutput uint64, stage string) error {
	if l.MaxExpansionRatio == 0 || cumulativeInput == 0 {
		return nil
	}
	if l.MaxExpansionRatio != 0 && cumulativeInput > math.MaxUint64/l.MaxExpansionRatio {
		// ratio * input would overflow: treat as unlimited for this input.
		return nil
	}
	bound := l.MaxExpansionRatio * cumulativeInput
	if cumulativeOutput > bound {
		return newError(KindLimit, stage, "output %d exceeds %d x input %d (ratio %d)", cumulativeOutput, l.MaxExpansionRatio, cumulativeInput, l.MaxExpansionRatio)
	}
	return nil
}

// CheckMemory compares tracked against MaxMemoryBytes.
func (l Limits) CheckMemory(tracked uint64, stage string) error {
	if l.MaxMemoryBytes == 0 {
		return nil
	}
	if tracked > l.MaxMemoryBytes {
		return newError(KindLimit, stage, "memory %d exceeds max_memory_bytes %d", tracked, l.MaxMemoryBytes)
	}
	return nil
}

// CheckWindow compares a requested window size against MaxWindowBytes.
func (l Limits) CheckWindow(requested uint64, stage string) error {
	if l.MaxWindowBytes == 0 {
		return nil
	}
	if requested > l.MaxWindowBytes {
		return newError(KindLimit, stage, "window %d exceeds max_window_bytes %d", requested, l.MaxWindowBytes)
	}
	return nil
}
