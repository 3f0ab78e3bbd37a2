package codec

import "testing"

func TestResolveLimitsDefaults(t *testing.T) {
	l := ResolveLimits(nil, 1<<15)
	if l.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Fatalf("MaxOutputBytes: got %d, want %d", l.MaxOutputBytes, DefaultMaxOutputBytes)
	}
	if l.MaxMemoryBytes != DefaultMaxMemoryBytes {
		t.Fatalf("MaxMemoryBytes: got %d, want %d", l.MaxMemoryBytes, DefaultMaxMemoryBytes)
	}
	if l.MaxWindowBytes != 1<<15 {
		t.Fatalf("MaxWindowBytes: got %d, want %d", l.MaxWindowBytes, 1<<15)
	}
	if l.MaxExpansionRatio != DefaultMaxExpansionRatio {
		t.Fatalf("MaxExpansionRatio: got %d, want %d", l.MaxExpansionRatio, DefaultMaxExpansionRatio)
	}
}

func TestResolveLimitsOverride(t *testing.T) {
	o := NewOptions()
	if err := o.Set(OptMaxOutputBytes, U64(1024)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	l := ResolveLimits(o, 0)
	if l.MaxOutputBytes != 1024 {
		t.Fatalf("MaxOutputBytes: got %d, want 1024", l.MaxOutputBytes)
	}
}

func TestCheckOutput(t *testing.T) {
	l := Limits{MaxOutputBytes: 10}
	if err := l.CheckOutput(10, "test"); err != nil {
		t.Fatalf("CheckOutput(10): unexpected error: %v", err)
	}
	if err := l.CheckOutput(11, "test"); err == nil {
		t.Fatal("CheckOutput(11): expected limit error")
	}

	unlimited := Limits{MaxOutputBytes: 0}
	if err := unlimited.CheckOutput(1 << 40, "test"); err != nil {
		t.Fatalf("CheckOutput unlimited: unexpected error: %v", err)
	}
}

func TestCheckExpansionRatioOverflowSafe(t *testing.T) {
	// A huge ratio must not overflow the internal multiplication.
	l := Limits{MaxExpansionRatio: 1 << 63}
	if err := l.CheckExpansionRatio(1, 1<<62, "test"); err != nil {
		t.Fatalf("CheckExpansionRatio: unexpected error: %v", err)
	}

	// input == 0 always passes regardless of output.
	l2 := Limits{MaxExpansionRatio: 2}
	if err := l2.CheckExpansionRatio(0, 1<<40, "test"); err != nil {
		t.Fatalf("CheckExpansionRatio(input=0): unexpected error: %v", err)
	}
}

func TestCheckExpansionRatioEnforced(t *testing.T) {
	l := Limits{MaxExpansionRatio: 100}
	if err := l.CheckExpansionRatio(10, 1000, "test"); err != nil {
		t.Fatalf("CheckExpansionRatio(10,1000): unexpected error: %v", err)
	}
	if err := l.CheckExpansionRatio(10, 1001, "test"); err == nil {
		t.Fatal("CheckExpansionRatio(10,1001): expected limit error")
	}
}

func TestMemoryTrackerSaturatesAndClamps(t *testing.T) {
	var m MemoryTracker
	m.Alloc(100)
	m.Free(1000)
	if m.Current() != 0 {
		t.Fatalf("Free underflow: got %d, want 0", m.Current())
	}

	m.Alloc(^uint64(0))
	m.Alloc(100)
	if m.Current() != ^uint64(0) {
		t.Fatalf("Alloc overflow: got %d, want max uint64", m.Current())
	}
}

func TestMemoryTrackerCheck(t *testing.T) {
	var m MemoryTracker
	m.Alloc(50)
	if err := m.Check(100, "test"); err != nil {
		t.Fatalf("Check: unexpected error: %v", err)
	}
	if err := m.Check(10, "test"); err == nil {
		t.Fatal("Check: expected limit error")
	}
	if err := m.Check(0, "test"); err != nil {
		t.Fatalf("Check unlimited: unexpected error: %v", err)
	}
}
