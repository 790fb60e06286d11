package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	failures int // number of leading calls that fail
	calls    int
	lastKey  string
	lastMeta map[string]string
	lastType string
}

func (s *fakeStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) error {
	s.calls++
	s.lastKey = key
	s.lastMeta = metadata
	s.lastType = contentType
	if s.calls <= s.failures {
		return errors.New("connection refused")
	}
	return nil
}

func testUploader(store *fakeStore) *Uploader {
	return NewUploader(UploaderConfig{
		Store:    store,
		Endpoint: "http://minio:9000",
		Bucket:   "chat-files",
		BotID:    "bot-1",
		Backoff:  time.Millisecond,
	})
}

func TestUpload_FirstAttempt(t *testing.T) {
	store := &fakeStore{}
	url, err := testUploader(store).Upload(context.Background(), "message-1-a.jpg", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://minio:9000/chat-files/message-1-a.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if store.calls != 1 {
		t.Errorf("expected 1 call, got %d", store.calls)
	}
	if store.lastType != "image/jpeg" {
		t.Errorf("unexpected content type %q", store.lastType)
	}
}

func TestUpload_SucceedsOnThirdAttempt(t *testing.T) {
	store := &fakeStore{failures: 2}
	url, err := testUploader(store).Upload(context.Background(), "message-2-b.pdf", []byte("x"), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://minio:9000/chat-files/message-2-b.pdf" {
		t.Errorf("unexpected url %q", url)
	}
	if store.calls != 3 {
		t.Errorf("expected 3 calls, got %d", store.calls)
	}
	if store.lastMeta["upload-attempt"] != "3" {
		t.Errorf("expected attempt metadata 3, got %q", store.lastMeta["upload-attempt"])
	}
}

func TestUpload_Exhausted(t *testing.T) {
	store := &fakeStore{failures: 10}
	_, err := testUploader(store).Upload(context.Background(), "message-3-c.zip", []byte("x"), "application/zip")
	if err == nil {
		t.Fatal("expected error")
	}
	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UploadError, got %T", err)
	}
	if ue.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", ue.Attempts)
	}
	if store.calls != 3 {
		t.Errorf("expected 3 calls, got %d", store.calls)
	}
	if ue.Unwrap() == nil {
		t.Error("expected wrapped cause")
	}
}

func TestUpload_Metadata(t *testing.T) {
	store := &fakeStore{}
	if _, err := testUploader(store).Upload(context.Background(), "k", []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	if store.lastMeta["bot-id"] != "bot-1" {
		t.Errorf("expected bot-id metadata, got %q", store.lastMeta["bot-id"])
	}
	if store.lastMeta["upload-timestamp"] == "" {
		t.Error("expected upload-timestamp metadata")
	}
	if store.lastType != "application/octet-stream" {
		t.Errorf("expected octet-stream default, got %q", store.lastType)
	}
}

func TestUpload_CanceledContext(t *testing.T) {
	store := &fakeStore{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	up := NewUploader(UploaderConfig{
		Store:    store,
		Endpoint: "http://minio:9000/",
		Bucket:   "chat-files",
		Backoff:  time.Hour, // would hang without cancellation
	})
	_, err := up.Upload(ctx, "k", []byte("x"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestObjectURL_TrimsEndpointSlash(t *testing.T) {
	up := NewUploader(UploaderConfig{Store: &fakeStore{}, Endpoint: "http://minio:9000/", Bucket: "b"})
	if got := up.ObjectURL("k"); got != "http://minio:9000/b/k" {
		t.Errorf("unexpected url %q", got)
	}
}
