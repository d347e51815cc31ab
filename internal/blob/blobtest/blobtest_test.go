package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"schoolcoord/internal/blob"
)

func TestNewMockS3_IsolatedStores(t *testing.T) {
	ctx := context.Background()
	a, b := NewMockS3(), NewMockS3()
	if a.Driver() != blob.DriverS3 {
		t.Fatalf("driver = %q", a.Driver())
	}
	if _, err := a.Put(ctx, "doc.json", bytes.NewReader([]byte(`{}`)), blob.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := a.Get(ctx, "doc.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != `{}` {
		t.Fatalf("got %q", got)
	}
	if _, err := b.Head(ctx, "doc.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("second mock shares state: %v", err)
	}
}
