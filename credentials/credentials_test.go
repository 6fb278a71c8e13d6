package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipstudio/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)
	ctx := context.Background()

	key, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get on missing file returned error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}

	if err := store.Set(ctx, "  sk-abcdef123456  "); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat credentials: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("file mode = %v; want 0600", perm)
	}

	data, _ := os.ReadFile(path)
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode file: %v", err)
	}
	if raw[config.CredentialKey] != "sk-abcdef123456" {
		t.Fatalf("stored under wrong key: %v", raw)
	}

	key, err = store.Get(ctx)
	if err != nil || key != "sk-abcdef123456" {
		t.Fatalf("Get = %q, %v", key, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if key, _ := store.Get(ctx); key != "" {
		t.Fatalf("key after Clear = %q", key)
	}
}

func TestFileStoreConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate stores share only the file lock
			store := NewFileStore(path)
			if i%2 == 0 {
				errs <- store.Set(ctx, "sk-concurrent")
			} else {
				errs <- store.Clear(ctx)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file corrupted by concurrent writers: %v (%q)", err, data)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
}

func TestFileStoreKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"other":"value"}`), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	store := NewFileStore(path)
	if err := store.Set(context.Background(), "sk-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"other": "value"`) {
		t.Fatalf("other entry lost: %s", data)
	}
}

func TestFileStoreRejectsEmptyKey(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	if err := store.Set(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "c.json"))
	ctx := context.Background()
	if err := store.Set(ctx, "sk-stored"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "")
	if key, err := Resolve(ctx, store); err != nil || key != "sk-stored" {
		t.Fatalf("Resolve = %q, %v; want stored key", key, err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-env")
	if key, _ := Resolve(ctx, store); key != "sk-env" {
		t.Fatalf("Resolve = %q; want env key", key)
	}

	t.Setenv("OPENAI_API_KEY", "")
	if key, _ := Resolve(ctx, nil); key != "" {
		t.Fatalf("Resolve(nil) = %q; want empty", key)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                  "(not set)",
		"short":             "*****",
		"sk-abcdefgh123456": "sk-**********3456",
	}
	for in, want := range cases {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, c := range cases {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(c.input), &out, ConfirmDefaultKey); got != c.want {
			t.Fatalf("Confirm(%q) = %v; want %v", c.input, got, c.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Fatalf("prompt not written: %q", out.String())
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.Credentials{Backend: "file", Path: filepath.Join(t.TempDir(), "c.json")})
	if err != nil {
		t.Fatalf("New(file): %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", store)
	}
	if _, err := New(config.Credentials{Backend: "vault"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// TestRedisStore runs against a live server when REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	store, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: "clipstudio:test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "sk-redis"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if key, err := store.Get(ctx); err != nil || key != "sk-redis" {
		t.Fatalf("Get = %q, %v", key, err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if key, _ := store.Get(ctx); key != "" {
		t.Fatalf("key after Clear = %q", key)
	}
}
