package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"sefaria/internal/library"
)

// TOCJSON is a small table of contents covering the depth and category cases
// the core distinguishes.
const TOCJSON = `[
  {"category": "Tanakh", "heCategory": "תנ״ך", "contents": [
    {"category": "Torah", "heCategory": "תורה", "contents": [
      {"title": "Genesis", "heTitle": "בראשית", "categories": ["Tanakh", "Torah"], "depth": 2},
      {"title": "Exodus", "heTitle": "שמות", "categories": ["Tanakh", "Torah"], "depth": 2}
    ]},
    {"category": "Commentary", "contents": [
      {"title": "Rashi on Genesis", "categories": ["Tanakh", "Commentary", "Rashi"], "depth": 3},
      {"title": "Ibn Ezra on Genesis", "categories": ["Tanakh", "Commentary", "Ibn Ezra"], "depth": 3},
      {"title": "Ramban on Genesis", "categories": ["Tanakh", "Commentary", "Ramban"], "depth": 3}
    ]},
    {"category": "Targum", "contents": [
      {"title": "Onkelos Genesis", "categories": ["Tanakh", "Targum", "Onkelos"], "depth": 2}
    ]}
  ]},
  {"category": "Talmud", "contents": [
    {"title": "Berakhot", "categories": ["Talmud", "Bavli"], "depth": 2}
  ]},
  {"category": "Kabbalah", "contents": [
    {"title": "Zohar", "categories": ["Kabbalah"], "depth": 3}
  ]}
]`

// NewLibrary returns a library loaded with TOCJSON.
func NewLibrary(t testing.TB) *library.Library {
	t.Helper()
	l := library.New()
	if err := l.LoadJSON(strings.NewReader(TOCJSON)); err != nil {
		t.Fatalf("load toc: %v", err)
	}
	return l
}

// WriteZip writes an archive holding files (name -> body) to path.
func WriteZip(t testing.TB, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip %s: %v", name, err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// ZipBytes returns an in-memory archive, as served by the export host.
func ZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip %s: %v", name, err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse decodes the JSON envelope of a recorded response.
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		json.NewDecoder(bytes.NewReader(bodyBytes)).Decode(&bodyMap)
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}

// ErrorCode digs the error code out of an error envelope.
func ErrorCode(body map[string]interface{}) string {
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

// FakeAPI serves canned bodies by URL path and counts requests. Unknown paths
// answer 404.
type FakeAPI struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
}

func NewFakeAPI(t testing.TB, routes map[string]string) *FakeAPI {
	t.Helper()
	f := &FakeAPI{routes: make(map[string]string), hits: make(map[string]int)}
	for path, body := range routes {
		f.routes[path] = body
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.routes[r.URL.Path]
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *FakeAPI) Set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = body
}

func (f *FakeAPI) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}
