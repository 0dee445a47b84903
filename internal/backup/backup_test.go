package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/rowanhall/hearth/internal/kv"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErrs int // fail this many PutObject calls before succeeding
	puts    int
	getErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErrs > 0 {
		m.putErrs--
		return nil, errors.New("connection reset")
	}
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func setupSnapshotter(t *testing.T) (*Snapshotter, *mockS3Client, kv.Store) {
	t.Helper()
	store, err := kv.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.DiscardHandler)
	s := New(Config{Bucket: "hearth", AccessKey: "key", SecretKey: "secret", Prefix: "backups/"}, store, logger)
	mock := newMockS3()
	s.client = mock
	s.now = func() time.Time { return time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC) }
	s.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}
	return s, mock, store
}

func TestRunUploadsSnapshot(t *testing.T) {
	s, mock, store := setupSnapshotter(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[{"name":"Ama"}]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Put(ctx, "events:2026-03-14", json.RawMessage(`[]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	key, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "backups/snapshot-2026-03-14T020000Z.json"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}

	data, ok := mock.objects[key]
	if !ok {
		t.Fatal("snapshot object not uploaded")
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(snap.Documents) != 2 {
		t.Errorf("snapshot has %d documents, want 2", len(snap.Documents))
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	s, mock, store := setupSnapshotter(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mock.putErrs = 2
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run after transient failures: %v", err)
	}
	if mock.puts != 3 {
		t.Errorf("PutObject called %d times, want 3", mock.puts)
	}
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	s, mock, store := setupSnapshotter(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mock.putErrs = 10
	if _, err := s.Run(ctx); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestRunUnconfigured(t *testing.T) {
	store, err := kv.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	s := New(Config{}, store, slog.New(slog.DiscardHandler))
	if s.Configured() {
		t.Error("Configured() = true without credentials")
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error from unconfigured Run")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s, _, store := setupSnapshotter(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[{"name":"Ama"}]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	key, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Mutate, then restore over the top.
	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[]`), 1); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := s.Restore(ctx, key); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	doc, err := store.Get(ctx, "ledger:kids")
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if string(doc.Value) != `[{"name":"Ama"}]` {
		t.Errorf("restored value = %s", doc.Value)
	}
}

func TestRunEncryptsSnapshot(t *testing.T) {
	s, mock, store := setupSnapshotter(t)
	s.passphrase = "correct horse"
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[{"name":"Theo"}]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	key, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(key, ".json.enc") {
		t.Errorf("key = %q, want .json.enc suffix", key)
	}

	data, ok := mock.objects[key]
	if !ok {
		t.Fatal("snapshot object not uploaded")
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err == nil {
		t.Fatal("uploaded object is readable as plaintext JSON")
	}

	// Round trip: mutate, restore, and check the sealed copy wins.
	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[]`), 1); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := s.Restore(ctx, key); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	doc, err := store.Get(ctx, "ledger:kids")
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if string(doc.Value) != `[{"name":"Theo"}]` {
		t.Errorf("restored value = %s", doc.Value)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	s, _, store := setupSnapshotter(t)
	s.passphrase = "correct horse"
	ctx := context.Background()

	if _, err := store.Put(ctx, "ledger:kids", json.RawMessage(`[]`), 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	key, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s.passphrase = "battery staple"
	if err := s.Restore(ctx, key); err == nil {
		t.Fatal("expected decrypt error with wrong passphrase")
	}

	s.passphrase = ""
	if err := s.Restore(ctx, key); err == nil {
		t.Fatal("expected error restoring encrypted snapshot without passphrase")
	}
}

func TestRestoreMissingObject(t *testing.T) {
	s, _, _ := setupSnapshotter(t)
	if err := s.Restore(context.Background(), "backups/nope.json"); err == nil {
		t.Fatal("expected error for missing snapshot object")
	}
}
