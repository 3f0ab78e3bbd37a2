package codec

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()

	calls := 0
	desc := &Method{
		Name:         "noop",
		Capabilities: CapEncode,
		NewEncoder: func(reg *Registry, opts *Options) (Coder, error) {
			calls++
			return nil, nil
		},
	}

	if err := r.Register(desc); err != nil {
		t.Fatalf("Register: %v", err)
	}

	other := &Method{Name: "noop"}
	if err := r.Register(other); err != nil {
		t.Fatalf("Register (dup): %v", err)
	}

	got, ok := r.Find("noop")
	if !ok {
		t.Fatal("Find: not found")
	}
	if got != desc {
		t.Fatal("Find: duplicate registration replaced the first entry")
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Method{})
	if err == nil {
		t.Fatal("Register: expected error for empty name")
	}
	if e, ok := err.(*Error); !ok || e.Kind != KindInvalidArg {
		t.Fatalf("Register: got %v (%T), want KindInvalidArg", err, err)
	}
}

func TestFindMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Find("nope"); ok {
		t.Fatal("Find: expected not found")
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatal("Default: returned distinct registries")
	}
}

func TestConcurrentReaders(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(&Method{Name: name, Capabilities: CapEncode}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			for _, name := range []string{"a", "b", "c", "missing"} {
				r.Find(name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Find: %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&Method{Name: name}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}
	got := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Names: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names: got %v, want %v", got, want)
		}
	}
}
