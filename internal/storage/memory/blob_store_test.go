package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"messages":[]}`)
	uri, err := store.PutObject(context.Background(), "raw/c1/abc.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://raw/c1/abc.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = '['
	got, ok := store.Object("raw/c1/abc.json")
	if !ok || string(got) != `{"messages":[]}` {
		t.Fatalf("expected stored copy to be immutable, got %q", got)
	}
}
