package uid

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerate(t *testing.T) {
	g := NewUUID()

	a, b := g.Generate(), g.Generate()

	if a == b {
		t.Fatal("Generate() returned the same ID twice")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error = %v", a, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("Version() = %d, want 7", parsed.Version())
	}
}

func TestStatic(t *testing.T) {
	var g StringID = Static("run-1")

	if g.Generate() != "run-1" {
		t.Fatalf("Generate() = %q", g.Generate())
	}
}
