package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"handle":"alice"}`)
	uri, err := store.PutObject(context.Background(), "snapshots/t1/1.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://snapshots/t1/1.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'X'
	stored, ok := store.Object("snapshots/t1/1.json")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if string(stored) != `{"handle":"alice"}` {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if got := store.Paths(); len(got) != 1 || got[0] != "snapshots/t1/1.json" {
		t.Fatalf("unexpected paths %v", got)
	}
}
