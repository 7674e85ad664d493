package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"pastebin/internal/paste"
	"pastebin/internal/security"
	"pastebin/internal/storage"
	"pastebin/internal/storage/memstore"
)

type field struct {
	name, filename string
	value          []byte
}

func multipartBody(t *testing.T, fields ...field) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, f := range fields {
		h := textproto.MIMEHeader{}
		disp := `form-data; name="` + f.name + `"`
		if f.filename != "" {
			disp += `; filename="` + f.filename + `"`
		}
		h.Set("Content-Disposition", disp)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(f.value); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	cfg := Config{
		Store:    store,
		MaxBytes: 1024,
		BaseURL:  "https://pb.example",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, store
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func write(t *testing.T, srv *Server, method, target string, fields ...field) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields...)
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", ct)
	return do(srv, req)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) paste.Response {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp paste.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	return do(srv, httptest.NewRequest(http.MethodGet, target, nil))
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d got %d: %s", status, rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "Error "+strconv.Itoa(status)+": ") {
		t.Fatalf("unexpected error body %q", rec.Body.String())
	}
}

func TestCreateReadUpdateDeleteFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := decodeResponse(t, write(t, srv, http.MethodPost, "/", field{name: "c", value: []byte("hello world")}))
	if !strings.HasPrefix(resp.URL, "https://pb.example/") || resp.SuggestURL != nil || resp.Expire != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	path := strings.TrimPrefix(resp.URL, "https://pb.example")
	admin := strings.TrimPrefix(resp.Admin, "https://pb.example")
	if !strings.HasPrefix(admin, path+":") {
		t.Fatalf("admin path %q does not extend %q", admin, path)
	}

	rec := get(srv, path)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello world" {
		t.Fatalf("read: %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain;charset=UTF-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Header().Get("Content-Disposition") != "inline" {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing cors header")
	}

	upd := decodeResponse(t, write(t, srv, http.MethodPut, admin, field{name: "c", value: []byte("second")}))
	if upd.URL != resp.URL || upd.Admin != resp.Admin {
		t.Fatalf("update changed identity: %+v", upd)
	}
	if rec := get(srv, path); rec.Body.String() != "second" {
		t.Fatalf("expected updated content, got %q", rec.Body.String())
	}

	rec = do(srv, httptest.NewRequest(http.MethodDelete, admin, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	expectError(t, get(srv, path), http.StatusNotFound)
	expectError(t, do(srv, httptest.NewRequest(http.MethodDelete, admin, nil)), http.StatusNotFound)
}

func TestBinaryRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	content := make([]byte, 512)
	for i := range content {
		content[i] = byte(i)
	}
	// a CRLF followed by dashes inside the payload must survive
	copy(content[100:], "\r\n--not-a-boundary\r\n")

	resp := decodeResponse(t, write(t, srv, http.MethodPost, "/", field{name: "c", filename: "blob.bin", value: content}))
	if resp.SuggestURL == nil || !strings.HasSuffix(*resp.SuggestURL, "/blob.bin") {
		t.Fatalf("expected filename suggestion, got %v", resp.SuggestURL)
	}
	rec := get(srv, strings.TrimPrefix(resp.URL, "https://pb.example"))
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("binary content corrupted")
	}
	if got := rec.Header().Get("Content-Disposition"); got != "inline; filename*=UTF-8''blob.bin" {
		t.Fatalf("unexpected disposition %q", got)
	}
}

func TestSecretChecks(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := decodeResponse(t, write(t, srv, http.MethodPost, "/",
		field{name: "c", value: []byte("x")}, field{name: "s", value: []byte("pw")}))
	path := strings.TrimPrefix(resp.URL, "https://pb.example")
	if resp.Admin != resp.URL+":pw" {
		t.Fatalf("custom secret not used: %q", resp.Admin)
	}

	expectError(t, write(t, srv, http.MethodPut, path+":wrong", field{name: "c", value: []byte("y")}), http.StatusForbidden)
	expectError(t, do(srv, httptest.NewRequest(http.MethodDelete, path+":wrong", nil)), http.StatusForbidden)
	expectError(t, do(srv, httptest.NewRequest(http.MethodDelete, path, nil)), http.StatusForbidden)
	expectError(t, write(t, srv, http.MethodPut, "/zzzz:pw", field{name: "c", value: []byte("y")}), http.StatusNotFound)
	expectError(t, do(srv, httptest.NewRequest(http.MethodDelete, "/zzzz:pw", nil)), http.StatusNotFound)
}

func TestCustomNameConflict(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := decodeResponse(t, write(t, srv, http.MethodPost, "/",
		field{name: "c", value: []byte("x")}, field{name: "n", value: []byte("hello")}))
	if resp.URL != "https://pb.example/~hello" {
		t.Fatalf("unexpected url %q", resp.URL)
	}
	rec := write(t, srv, http.MethodPost, "/", field{name: "c", value: []byte("y")}, field{name: "n", value: []byte("hello")})
	expectError(t, rec, http.StatusConflict)
	if !strings.Contains(rec.Body.String(), "Error 409: name 'hello' is already used") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestPrivateAndExpire(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := decodeResponse(t, write(t, srv, http.MethodPost, "/",
		field{name: "c", value: []byte("x")}, field{name: "p", value: nil}, field{name: "e", value: []byte("10m")}))
	if !resp.IsPrivate || resp.Expire == nil || *resp.Expire != 600 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if short := strings.TrimPrefix(resp.URL, "https://pb.example/"); len(short) != 24 {
		t.Fatalf("expected private name, got %q", short)
	}
	expectError(t, write(t, srv, http.MethodPost, "/",
		field{name: "c", value: []byte("x")}, field{name: "e", value: []byte("30")}), http.StatusBadRequest)
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("c=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(srv, req)
	expectError(t, rec, http.StatusBadRequest)
	if !strings.Contains(rec.Body.String(), "multipart/form-data") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	expectError(t, do(srv, req), http.StatusBadRequest)

	expectError(t, write(t, srv, http.MethodPost, "/", field{name: "n", value: []byte("abc")}), http.StatusBadRequest)
	expectError(t, write(t, srv, http.MethodPost, "/",
		field{name: "c", value: []byte("x")}, field{name: "n", value: []byte("a:b")}), http.StatusBadRequest)
}

func TestPayloadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	// over MaxBytes but within the framing slack
	expectError(t, write(t, srv, http.MethodPost, "/", field{name: "c", value: bytes.Repeat([]byte("x"), 2048)}), http.StatusRequestEntityTooLarge)
	// beyond the body limit altogether
	expectError(t, write(t, srv, http.MethodPost, "/", field{name: "c", value: bytes.Repeat([]byte("x"), 64<<10)}), http.StatusRequestEntityTooLarge)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(srv, httptest.NewRequest(http.MethodPatch, "/abcd", nil))
	expectError(t, rec, http.StatusMethodNotAllowed)
	if rec.Body.String() != "Error 405: method not allowed\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	expectError(t, write(t, srv, http.MethodPost, "/abcd", field{name: "c", value: []byte("x")}), http.StatusMethodNotAllowed)
}

func savePaste(t *testing.T, store storage.Store, short string, content []byte, mutate func(*storage.Metadata)) {
	t.Helper()
	now := time.Now().UTC()
	p := &storage.Paste{
		Short:   short,
		Content: content,
		Metadata: storage.Metadata{
			PostedAt:     now,
			Passwd:       "secret",
			LastModified: now,
		},
	}
	if mutate != nil {
		mutate(&p.Metadata)
	}
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("save paste: %v", err)
	}
}

func TestContentTypeAndDisposition(t *testing.T) {
	srv, store := newTestServer(t, nil)
	savePaste(t, store, "abcd", []byte("<p>hi</p>"), func(m *storage.Metadata) { m.Filename = "résumé.html" })

	cases := []struct {
		target      string
		contentType string
		disposition string
	}{
		{"/abcd", "text/plain;charset=UTF-8", "inline; filename*=UTF-8''r%C3%A9sum%C3%A9.html"},
		{"/abcd.html", "text/html;charset=UTF-8", "inline; filename*=UTF-8''r%C3%A9sum%C3%A9.html"},
		{"/abcd.png?mime=text/css", "text/css;charset=UTF-8", "inline; filename*=UTF-8''r%C3%A9sum%C3%A9.html"},
		{"/abcd/my%20page.html?a", "text/html;charset=UTF-8", "attachment; filename*=UTF-8''my%20page.html"},
	}
	for _, tc := range cases {
		rec := get(srv, tc.target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.target, rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: content type %q want %q", tc.target, got, tc.contentType)
		}
		if got := rec.Header().Get("Content-Disposition"); got != tc.disposition {
			t.Fatalf("%s: disposition %q want %q", tc.target, got, tc.disposition)
		}
	}
}

func TestIfModifiedSince(t *testing.T) {
	srv, store := newTestServer(t, func(c *Config) { c.CachePasteAge = 300 })
	modified := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	savePaste(t, store, "abcd", []byte("x"), func(m *storage.Metadata) { m.LastModified = modified })

	rec := get(srv, "/abcd")
	if rec.Header().Get("Last-Modified") != modified.Format(http.TimeFormat) {
		t.Fatalf("unexpected last-modified %q", rec.Header().Get("Last-Modified"))
	}
	if rec.Header().Get("Cache-Control") != "public, max-age=300" {
		t.Fatalf("unexpected cache-control %q", rec.Header().Get("Cache-Control"))
	}

	req := httptest.NewRequest(http.MethodGet, "/abcd", nil)
	req.Header.Set("If-Modified-Since", modified.Format(http.TimeFormat))
	if rec := do(srv, req); rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/abcd", nil)
	req.Header.Set("If-Modified-Since", modified.Add(-time.Minute).Format(http.TimeFormat))
	if rec := do(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestRoles(t *testing.T) {
	srv, store := newTestServer(t, nil)
	savePaste(t, store, "link", []byte("https://example.com/target\n"), nil)
	savePaste(t, store, "text", []byte("# Title\n\nbody"), nil)

	rec := get(srv, "/u/link")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://example.com/target" {
		t.Fatalf("redirect: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("redirects must not carry cors header")
	}
	expectError(t, get(srv, "/u/text"), http.StatusBadRequest)

	rec = get(srv, "/a/text")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>Title</title>") {
		t.Fatalf("markdown: %d %s", rec.Code, rec.Body.String())
	}

	rec = get(srv, "/text?lang=markdown")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("highlight: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = get(srv, "/q/text")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png body")
	}
	expectError(t, get(srv, "/a/none"), http.StatusNotFound)
}

func TestStaticPages(t *testing.T) {
	srv, store := newTestServer(t, func(c *Config) {
		c.CacheStaticPageAge = 60
		c.TOSMaintainer = "Jane Maintainer"
		c.TOSMail = "jane@pb.example"
	})
	savePaste(t, store, "abcd", []byte("x"), nil)

	for _, p := range []string{"/", "/index", "/index.html", "/abcd:secret"} {
		rec := get(srv, p)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "paste-form") {
			t.Fatalf("%s: expected editor, got %d", p, rec.Code)
		}
		if rec.Header().Get("Cache-Control") != "public, max-age=60" {
			t.Fatalf("%s: unexpected cache-control %q", p, rec.Header().Get("Cache-Control"))
		}
	}
	if rec := get(srv, "/api"); !strings.Contains(rec.Body.String(), "API Reference") {
		t.Fatalf("api page missing")
	}
	rec := get(srv, "/tos")
	if !strings.Contains(rec.Body.String(), "Jane Maintainer") || !strings.Contains(rec.Body.String(), "https://pb.example") {
		t.Fatalf("tos page not filled in")
	}
	if rec := get(srv, "/static/style.css"); rec.Code != http.StatusOK {
		t.Fatalf("stylesheet: %d", rec.Code)
	}
}

func TestFavicon(t *testing.T) {
	srv, _ := newTestServer(t, func(c *Config) { c.Favicon = "https://cdn.example/icon.png" })
	rec := get(srv, "/favicon.ico")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://cdn.example/icon.png" {
		t.Fatalf("favicon: %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicAuth(t *testing.T) {
	hash, err := security.HashPassword("hashed-pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	srv, store := newTestServer(t, func(c *Config) {
		c.BasicAuth = security.Credentials{"alice": "plain-pw", "bob": hash}
	})
	savePaste(t, store, "abcd", []byte("x"), nil)

	rec := get(srv, "/")
	expectError(t, rec, http.StatusUnauthorized)
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected challenge header")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", basicAuth("alice", "plain-pw"))
	if rec := do(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", basicAuth("bob", "hashed-pw"))
	if rec := do(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with hashed credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", basicAuth("mallory", "x"))
	expectError(t, do(srv, req), http.StatusUnauthorized)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	expectError(t, do(srv, req), http.StatusBadRequest)

	// pastes themselves stay public
	if rec := get(srv, "/abcd"); rec.Code != http.StatusOK {
		t.Fatalf("paste read should not require auth, got %d", rec.Code)
	}

	expectError(t, write(t, srv, http.MethodPost, "/", field{name: "c", value: []byte("x")}), http.StatusUnauthorized)
	body, ct := multipartBody(t, field{name: "c", value: []byte("x")})
	req = httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", basicAuth("alice", "plain-pw"))
	decodeResponse(t, do(srv, req))

	// updates are authorized by the paste secret alone
	decodeResponse(t, write(t, srv, http.MethodPut, "/abcd:secret", field{name: "c", value: []byte("y")}))
}

func TestOptions(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/abcd", nil)
	req.Header.Set("Origin", "https://other.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := do(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" || rec.Header().Get("Access-Control-Allow-Headers") != "content-type" {
		t.Fatalf("unexpected preflight headers %v", rec.Header())
	}

	rec = do(srv, httptest.NewRequest(http.MethodOptions, "/", nil))
	if !strings.Contains(rec.Header().Get("Allow"), "PUT") {
		t.Fatalf("expected allow header, got %v", rec.Header())
	}
}

func TestExpiredPasteIsNotServed(t *testing.T) {
	srv, store := newTestServer(t, nil)
	savePaste(t, store, "abcd", []byte("x"), func(m *storage.Metadata) {
		m.LastModified = time.Now().Add(-2 * time.Minute)
		m.ExpirationTTL = 60
	})
	expectError(t, get(srv, "/abcd"), http.StatusNotFound)
	if store.Len() != 0 {
		t.Fatalf("expired paste should be removed on read")
	}
}

func TestBaseURLFromRequest(t *testing.T) {
	srv, _ := newTestServer(t, func(c *Config) {
		c.BaseURL = ""
		c.TrustProxy = true
	})
	body, ct := multipartBody(t, field{name: "c", value: []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "http://paste.local/", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp := decodeResponse(t, do(srv, req))
	u, err := url.Parse(resp.URL)
	if err != nil || u.Scheme != "https" || u.Host != "paste.local" {
		t.Fatalf("unexpected url %q", resp.URL)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/healthz")
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, body)
	}
}

type pingStore struct {
	*memstore.Store
	err error
}

func (p pingStore) Ping(context.Context) error { return p.err }

func TestHealthzPingsStore(t *testing.T) {
	srv, _ := newTestServer(t, func(c *Config) { c.Store = pingStore{Store: memstore.New()} })
	if rec := get(srv, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz with reachable store: %d", rec.Code)
	}

	srv, _ = newTestServer(t, func(c *Config) { c.Store = pingStore{Store: memstore.New(), err: errors.New("down")} })
	expectError(t, get(srv, "/healthz"), http.StatusServiceUnavailable)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, func(c *Config) { c.Metrics = true })
	decodeResponse(t, write(t, srv, http.MethodPost, "/", field{name: "c", value: []byte("x")}))
	rec := get(srv, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pastebin_pastes_created_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(1), 1, time.Minute)
	srv, _ := newTestServer(t, func(c *Config) { c.RateLimiter = limiter })

	// First request allowed
	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	res1 := do(srv, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res1.Code)
	}

	// Second immediate request should be limited
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	res2 := do(srv, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", res2.Code)
	}
	if res2.Body.String() != "Error 429: too many requests\n" {
		t.Fatalf("unexpected body %q", res2.Body.String())
	}

	// Other clients are unaffected
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.RemoteAddr = "5.6.7.8:1234"
	if res3 := do(srv, req3); res3.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res3.Code)
	}
}
