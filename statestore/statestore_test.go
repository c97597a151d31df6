package statestore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xraph/airlift"
)

// openers builds each locally-testable backend against fresh storage.
var openers = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore("/state")
	},
	"filesystem": func(t *testing.T) Store {
		s, err := NewFilesystemStore(t.TempDir(), "/state")
		if err != nil {
			t.Fatalf("open filesystem store: %v", err)
		}
		return s
	},
	"sqlite": func(t *testing.T) Store {
		cfg := airlift.StateStorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "state.db"),
		}
		s, err := New(cfg, "/state")
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		return s
	},
}

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()

	for name, open := range openers {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close(ctx)

			if _, err := s.Get(ctx, "7/1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get before put: err = %v, want ErrNotFound", err)
			}

			want := []byte(`{"cursor":"2026-08-24"}`)
			if err := s.Put(ctx, "7/1", want); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := s.Get(ctx, "7/1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("get = %q, want %q", got, want)
			}

			// Overwrite replaces, never appends.
			want = []byte(`{"cursor":"2026-08-25"}`)
			if err := s.Put(ctx, "7/1", want); err != nil {
				t.Fatalf("second put: %v", err)
			}
			got, err = s.Get(ctx, "7/1")
			if err != nil {
				t.Fatalf("get after overwrite: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("get after overwrite = %q, want %q", got, want)
			}

			if err := s.Delete(ctx, "7/1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Get(ctx, "7/1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get after delete: err = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "7/1"); err != nil {
				t.Fatalf("delete of absent key: %v", err)
			}
		})
	}
}

func TestStoreEmptyValueIsADocument(t *testing.T) {
	ctx := context.Background()

	for name, open := range openers {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close(ctx)

			if err := s.Put(ctx, "7/1", []byte{}); err != nil {
				t.Fatalf("put empty: %v", err)
			}
			got, err := s.Get(ctx, "7/1")
			if err != nil {
				t.Fatalf("get empty: err = %v, want nil", err)
			}
			if len(got) != 0 {
				t.Errorf("get empty = %q, want empty", got)
			}
		})
	}
}

func TestStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()

	a := NewMemoryStore("/state")
	b := &MemoryStore{prefix: "/other", docs: a.docs}

	if err := a.Put(ctx, "7/1", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := b.Get(ctx, "7/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-prefix get: err = %v, want ErrNotFound", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(airlift.StateStorageConfig{Backend: "s3"}, "/state")
	if !errors.Is(err, airlift.ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestDocumentKeyNormalizesSlashes(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"/state", "7/1", "/state/7/1"},
		{"/state/", "7/1", "/state/7/1"},
		{"/state", "/7/1", "/state/7/1"},
	}
	for _, tc := range cases {
		if got := documentKey(tc.prefix, tc.key); got != tc.want {
			t.Errorf("documentKey(%q, %q) = %q, want %q", tc.prefix, tc.key, got, tc.want)
		}
	}
}
