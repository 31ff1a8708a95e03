package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/newthinker/cyclewatch/internal/core"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Config_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.txt", "file.txt"},
		{"archive", "file.txt", "archive/file.txt"},
		{"archive/", "file.txt", "archive/file.txt"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.Trim(tt.prefix, "/")}
		got := s.key(tt.path)
		if got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{})
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

// fakeS3 is a path-style in-memory object store covering the calls S3Storage makes
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// path is /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>`,
			parts[0], prefix, len(keys))
		for _, k := range keys {
			fmt.Fprintf(w, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[k]))
		}
		fmt.Fprint(w, "</ListBucketResult>")
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Write(data)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:    "reports",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "cyclewatch/",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return s, fake
}

func TestS3Storage_WriteRead(t *testing.T) {
	s, fake := newFakeS3(t)
	ctx := context.Background()

	if err := s.Write(ctx, "bitcoin/2024-01-01.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := fake.objects["cyclewatch/bitcoin/2024-01-01.json"]; !ok {
		t.Fatalf("expected prefixed object, have %v", fake.objects)
	}
	if fake.types["cyclewatch/bitcoin/2024-01-01.json"] != "application/json" {
		t.Errorf("unexpected content type %q", fake.types["cyclewatch/bitcoin/2024-01-01.json"])
	}

	got, err := s.Read(ctx, "bitcoin/2024-01-01.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("got %q", got)
	}
}

func TestS3Storage_ReadMissing(t *testing.T) {
	s, _ := newFakeS3(t)

	_, err := s.Read(context.Background(), "missing.json")
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestS3Storage_ExistsDelete(t *testing.T) {
	s, _ := newFakeS3(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "a.json")
	if err != nil || exists {
		t.Fatalf("expected missing object, got %v, %v", exists, err)
	}

	s.Write(ctx, "a.json", []byte("{}"))
	exists, err = s.Exists(ctx, "a.json")
	if err != nil || !exists {
		t.Fatalf("expected existing object, got %v, %v", exists, err)
	}

	if err := s.Delete(ctx, "a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, _ = s.Exists(ctx, "a.json")
	if exists {
		t.Error("object should be deleted")
	}
}

func TestS3Storage_List(t *testing.T) {
	s, _ := newFakeS3(t)
	ctx := context.Background()

	s.Write(ctx, "bitcoin/2024-01-02.json", []byte("{}"))
	s.Write(ctx, "bitcoin/2024-01-01.json", []byte("{}"))
	s.Write(ctx, "ethereum/2024-01-01.json", []byte("{}"))

	keys, err := s.List(ctx, "bitcoin/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 || keys[0] != "bitcoin/2024-01-01.json" {
		t.Errorf("unexpected keys %v", keys)
	}
}
