package snapshottest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goforj/postcache"
)

// Options configures shared snapshot store checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every load to miss.
	NullSemantics bool
	// SkipCloneCheck disables the "load returns a private copy" assertion.
	SkipCloneCheck bool
}

// RunSnapshotContract runs a backend-agnostic snapshot store suite.
func RunSnapshotContract(t *testing.T, store postcache.SnapshotStore, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}

	// Missing key.
	if body, ok, err := store.Load(ctx, key("missing")); err != nil || ok || body != nil {
		t.Fatalf("expected miss, got ok=%v body=%q err=%v", ok, body, err)
	}

	// Save/Load round-trip.
	want := []byte(`{"version":1,"posts":[]}`)
	if err := store.Save(ctx, key("alpha"), want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	body, ok, err := store.Load(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
	} else {
		if !ok || !bytes.Equal(body, want) {
			t.Fatalf("unexpected load result: ok=%v body=%q", ok, body)
		}
		if !opts.SkipCloneCheck {
			body[0] = 'X'
			again, ok, err := store.Load(ctx, key("alpha"))
			if err != nil || !ok || !bytes.Equal(again, want) {
				t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok, again, err)
			}
		}
	}

	// Overwrite.
	next := []byte(`{"version":1,"posts":[{"id":1}]}`)
	if err := store.Save(ctx, key("alpha"), next); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if !opts.NullSemantics {
		body, ok, err = store.Load(ctx, key("alpha"))
		if err != nil || !ok || !bytes.Equal(body, next) {
			t.Fatalf("expected overwritten value, got ok=%v body=%q err=%v", ok, body, err)
		}
	}

	// Delete, twice.
	if err := store.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}
	if _, ok, err := store.Load(ctx, key("alpha")); err != nil || ok {
		t.Fatalf("expected key deleted; ok=%v err=%v", ok, err)
	}
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
