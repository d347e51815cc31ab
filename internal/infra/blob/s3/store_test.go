package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"schoolcoord/internal/blob/core"
)

func TestStore_MockedBasicFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected DriverS3")
	}
	info, err := store.Put(ctx, "coordination/schools.json", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	got, rc, err := store.Get(ctx, "coordination/schools.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "hello" || got.ETag != info.ETag {
		t.Fatalf("unexpected get %q %+v", b, got)
	}
}

func TestStore_PutOverwritesAndChangesETag(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	first, err := store.Put(ctx, "k", bytes.NewReader([]byte("one")), core.PutOptions{})
	if err != nil {
		t.Fatalf("put1: %v", err)
	}
	second, err := store.Put(ctx, "k", bytes.NewReader([]byte("two")), core.PutOptions{})
	if err != nil {
		t.Fatalf("put2: %v", err)
	}
	if first.ETag == second.ETag {
		t.Fatalf("etag should differ after overwrite")
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "two" {
		t.Fatalf("got %q", b)
	}
}

func TestStore_NotFoundMapping(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
}

func TestStore_New(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket required error")
	}
	store, err := New(context.Background(), Config{
		Bucket:          "b",
		Endpoint:        "http://127.0.0.1:9000",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.bucket != "b" {
		t.Fatalf("bucket not set")
	}
}

func TestDecodeChunkedHelper(t *testing.T) {
	if _, ok := decodeChunkedLite([]byte("not-chunked")); ok {
		t.Fatalf("expected fail 1")
	}
	if _, ok := decodeChunkedLite([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeChunkedLite([]byte("5\r\nhello\r\n0\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello")
	}
	if _, err := parseHex("zz"); err == nil {
		t.Fatalf("expected invalid hex")
	}
}

func TestMockRoundTripperLiteUnsupported(t *testing.T) {
	rt := &mockRoundTripperLite{state: make(map[string]mockObj)}
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := rt.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
