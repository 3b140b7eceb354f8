// File path: internal/registry/registry_test.go
package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

const customerSource = `
       01 CUSTOMER.
          05 NAME     PIC X(4).
          05 AGE      PIC 9(3).
`

const customerReformatted = "01 customer. 05 name pic x(4).\n05 age picture is 999. *> same storage\n"

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(catalog.MemoryPath)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	reg, err := New(store, opts...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg, store
}

func TestRegisterAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	entry, err := reg.Register(ctx, " customer ", []byte(customerSource))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if entry.Copybook.Name != "CUSTOMER" || entry.Copybook.RecordLength != 7 || entry.Layout.Length() != 7 {
		t.Fatalf("unexpected entry %+v", entry.Copybook)
	}
	got, err := reg.Get(ctx, "Customer")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Compiled != entry.Compiled {
		t.Fatalf("expected cached layout to be shared")
	}
	rec, err := copybook.DecodeRecord(got.Layout, []byte("JOHN025"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := rec.Get("AGE"); !ok || f.Value.Int != 25 {
		t.Fatalf("unexpected AGE %+v", f)
	}
}

func TestGetRecompilesAfterPurge(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	entry, err := reg.Register(ctx, "CUSTOMER", []byte(customerSource))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Purge()
	got, err := reg.Get(ctx, "CUSTOMER")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Compiled == entry.Compiled {
		t.Fatalf("expected a fresh compilation after purge")
	}
	if got.Fingerprint != entry.Fingerprint || got.Layout.Length() != 7 {
		t.Fatalf("recompiled layout differs: %s vs %s", got.Fingerprint, entry.Fingerprint)
	}
}

func TestFingerprintIgnoresFormatting(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	a, err := reg.Compile(ctx, []byte(customerSource))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := reg.Compile(ctx, []byte(customerReformatted))
	if err != nil {
		t.Fatalf("compile reformatted: %v", err)
	}
	if a != b {
		t.Fatalf("expected reformatted source to hit the cache")
	}
	c, err := reg.Compile(ctx, []byte("01 CUSTOMER. 05 NAME PIC X(5). 05 AGE PIC 9(3)."))
	if err != nil {
		t.Fatalf("compile changed: %v", err)
	}
	if c.Fingerprint == a.Fingerprint {
		t.Fatalf("expected a storage change to alter the fingerprint")
	}
}

func TestRegisterFailureStoresNothing(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Register(ctx, "BROKEN", []byte("01 REC. 05 A PIC X(2) REDEFINES MISSING."))
	if err == nil {
		t.Fatalf("expected compile failure")
	}
	if _, err := store.GetCopybook(ctx, "BROKEN"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
	if _, err := reg.Register(ctx, "  ", []byte(customerSource)); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestListAndDelete(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	for _, name := range []string{"B", "A"} {
		if _, err := reg.Register(ctx, name, []byte(customerSource)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "A" || list[1].Name != "B" {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := reg.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reg.Get(ctx, "A"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSyntheticRootAndLimits(t *testing.T) {
	reg, _ := newTestRegistry(t, WithSyntheticRoot("file"), WithMaxRecordLength(8))
	ctx := context.Background()
	compiled, err := reg.Compile(ctx, []byte("01 HDR. 05 KIND PIC X. 05 DATE PIC 9(6).\n01 DTL. 05 KIND PIC X. 05 AMT PIC 9(4).\n"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if compiled.Layout.Length() != 7 || compiled.Tree.Label() != "FILE" {
		t.Fatalf("unexpected layout length %d root %s", compiled.Layout.Length(), compiled.Tree.Label())
	}
	if _, err := reg.Compile(ctx, []byte("01 BIG PIC X(9).")); !errors.Is(err, copybook.ErrRecordTooLarge) {
		t.Fatalf("expected RecordTooLarge, got %v", err)
	}
}

func TestLayoutCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newLayoutCache(2)
	a, b, d := &Compiled{Fingerprint: "a"}, &Compiled{Fingerprint: "b"}, &Compiled{Fingerprint: "d"}
	c.Set("a", a)
	c.Set("b", b)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a cached")
	}
	c.Set("d", d)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if got, ok := c.Get("a"); !ok || got != a {
		t.Fatalf("expected a retained")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}
