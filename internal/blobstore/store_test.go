package blobstore_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"easel/internal/blobstore"
	"easel/internal/services"
)

func openStore(t *testing.T) *blobstore.Store {
	t.Helper()
	store, err := blobstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openStore(t)

	payload := []byte("generated image bytes")
	ref, err := store.Put(payload, "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ref == "" {
		t.Fatal("expected non-empty ref")
	}

	got, err := store.Get(ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}

	info, err := store.Stat(ref)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.ContentType != "image/jpeg" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestPutIdenticalContentDeduplicates(t *testing.T) {
	store := openStore(t)

	payload := []byte("same bytes")
	first, err := store.Put(payload, "image/png")
	if err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	second, err := store.Put(payload, "image/png")
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical refs, got %s and %s", first, second)
	}
}

func TestPutRejectsEmptyPayload(t *testing.T) {
	store := openStore(t)
	if _, err := store.Put(nil, "image/png"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestGetMissingRefReturnsNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get("deadbeef")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteIsBestEffort(t *testing.T) {
	store := openStore(t)

	ref, err := store.Put([]byte("short lived"), "image/png")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ref); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	// Deleting again is not an error.
	if err := store.Delete(ref); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}

func TestConcurrentPutsSameContent(t *testing.T) {
	store := openStore(t)
	payload := []byte("contended content")

	var wg sync.WaitGroup
	refs := make([]blobstore.Ref, 8)
	errs := make([]error, 8)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = store.Put(payload, "image/jpeg")
		}(i)
	}
	wg.Wait()

	for i := range refs {
		if errs[i] != nil {
			t.Fatalf("Put %d failed: %v", i, errs[i])
		}
		if refs[i] != refs[0] {
			t.Fatalf("ref mismatch: %s vs %s", refs[i], refs[0])
		}
	}

	got, err := store.Get(refs[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("content corrupted by concurrent puts")
	}
}
