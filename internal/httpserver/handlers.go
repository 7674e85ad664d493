package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"pastebin/internal/formdata"
	"pastebin/internal/paste"
	"pastebin/internal/pastepath"
	"pastebin/internal/storage"
)

// bodySlack covers multipart framing and the small fields around the content.
const bodySlack = 16 << 10

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}
	params, err := s.readParams(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pastes.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, res.Response(s.base(r)))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p := pastepath.Parse(r.URL.Path)
	params, err := s.readParams(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.pastes.Update(r.Context(), p.Short, p.Secret, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, res.Response(s.base(r)))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	p := pastepath.Parse(r.URL.Path)
	if err := s.pastes.Delete(r.Context(), p.Short, p.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	_, _ = io.WriteString(w, "the paste will be deleted in seconds\n")
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if r.Header.Get("Origin") != "" && r.Header.Get("Access-Control-Request-Method") != "" {
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,POST,DELETE,OPTIONS")
		h.Set("Access-Control-Max-Age", "86400")
		if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			h.Set("Access-Control-Allow-Headers", req)
		}
	} else {
		h.Set("Allow", "GET, HEAD, POST, PUT, DELETE, OPTIONS")
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p := pastepath.Parse(r.URL.Path)

	if r.URL.Path == "/favicon.ico" && s.favicon != "" {
		s.redirect(w, r, s.favicon)
		return
	}

	// an admin URL opens the editor
	page := r.URL.Path
	if p.Secret != "" {
		page = "/"
	}
	if s.serveStatic(w, r, page) {
		return
	}

	item, err := s.pastes.Read(r.Context(), p.Short)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	lastModified := item.Metadata.LastModified.UTC().Truncate(time.Second)
	if !lastModified.IsZero() {
		if ims, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil && !lastModified.After(ims) {
			w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	switch p.Role {
	case "u":
		target, ok := paste.RedirectTarget(item.Content)
		if !ok {
			s.writeError(w, r, paste.Errorf(http.StatusBadRequest, "cannot parse paste content as a legal URL"))
			return
		}
		s.redirect(w, r, target)
		return
	case "a":
		s.servePage(w, r, item, func(buf *bytes.Buffer) error {
			return s.renderer.Markdown(buf, item.Content)
		})
		return
	case "q":
		s.serveQR(w, r, item)
		return
	}

	if lang := r.URL.Query().Get("lang"); lang != "" {
		s.servePage(w, r, item, func(buf *bytes.Buffer) error {
			return s.renderer.Highlight(buf, item.Content, lang)
		})
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType(r.URL.Query().Get("mime"), p.Ext)+";charset=UTF-8")
	s.setPasteHeaders(h, item)

	disposition := "inline"
	if r.URL.Query().Has("a") {
		disposition = "attachment"
	}
	filename := p.Filename
	if filename == "" {
		filename = item.Metadata.Filename
	}
	if filename != "" {
		disposition += "; filename*=UTF-8''" + encodeRFC5987(filename)
	}
	h.Set("Content-Disposition", disposition)
	_, _ = w.Write(item.Content)
}

// serveStatic writes the static page registered at page, if any.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, page string) bool {
	var body []byte
	switch page {
	case "/", "/index", "/index.html":
		var buf bytes.Buffer
		err := s.templates.ExecuteTemplate(&buf, "index", indexPageData{
			Title:    "Pastebin",
			BaseURL:  s.relBase(),
			Favicon:  s.favicon,
			Repo:     s.repo,
			MaxBytes: s.maxBytes,
		})
		if err != nil {
			s.writeError(w, r, fmt.Errorf("render index: %w", err))
			return true
		}
		body = buf.Bytes()
	case "/api", "/api.html":
		body = s.apiPage
	case "/tos", "/tos.html":
		body = s.tosPage
	default:
		return false
	}
	if !s.requireAuth(w, r) {
		return true
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	if s.staticAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.staticAge))
	}
	_, _ = w.Write(body)
	return true
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, item *storage.Paste, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	s.setPasteHeaders(w.Header(), item)
	_, _ = buf.WriteTo(w)
}

func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, item *storage.Paste) {
	png, err := qrcode.Encode(s.base(r)+pastepath.Public(item.Short), qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode qr: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	s.setPasteHeaders(w.Header(), item)
	_, _ = w.Write(png)
}

func (s *Server) setPasteHeaders(h http.Header, item *storage.Paste) {
	if s.pasteAge > 0 {
		h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.pasteAge))
	}
	if !item.Metadata.LastModified.IsZero() {
		h.Set("Last-Modified", item.Metadata.LastModified.UTC().Format(http.TimeFormat))
	}
}

// readParams reads and validates a multipart write request.
func (s *Server) readParams(w http.ResponseWriter, r *http.Request) (paste.WriteParams, error) {
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(ct, "multipart/form-data") {
		return paste.WriteParams{}, paste.Errorf(http.StatusBadRequest, "bad usage, please use 'multipart/form-data' instead of %s", ct)
	}
	boundary, err := formdata.Boundary(ct)
	if err != nil {
		return paste.WriteParams{}, paste.Errorf(http.StatusBadRequest, "error occurs when parsing formdata")
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.maxBytes)+bodySlack))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return paste.WriteParams{}, paste.Errorf(http.StatusRequestEntityTooLarge, "payload too large")
		}
		return paste.WriteParams{}, fmt.Errorf("read body: %w", err)
	}
	form, err := formdata.Parse(body, boundary)
	if err != nil {
		s.logger.Debug("malformed formdata", "error", err)
		return paste.WriteParams{}, paste.Errorf(http.StatusBadRequest, "error occurs when parsing formdata")
	}
	return paste.ParamsFromForm(form, s.maxBytes)
}

// requireAuth enforces the basic-auth gate and reports whether the request may proceed.
func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if !s.auth.Enabled() {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		if r.Header.Get("Authorization") != "" {
			s.writeError(w, r, paste.Errorf(http.StatusBadRequest, "invalid authentication scheme"))
			return false
		}
		w.Header().Set("WWW-Authenticate", `Basic charset="UTF-8"`)
		s.writeError(w, r, paste.Errorf(http.StatusUnauthorized, "HTTP basic auth is required"))
		return false
	}
	if _, known := s.auth[user]; !known {
		s.writeError(w, r, paste.Errorf(http.StatusUnauthorized, "user not found for basic auth"))
		return false
	}
	if !s.auth.Verify(user, pass) {
		s.writeError(w, r, paste.Errorf(http.StatusUnauthorized, "incorrect passwd for basic auth"))
		return false
	}
	return true
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	w.Header().Del("Access-Control-Allow-Origin")
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	_, _ = w.Write(append(data, '\n'))
}

// writeError renders err as "Error <code>: <message>". Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := paste.StatusOf(err)
	msg := err.Error()
	var pe *paste.Error
	if !errors.As(err, &pe) {
		s.logger.Error("internal error", "error", err, "method", r.Method, "path", r.URL.Path)
		msg = "internal server error"
	}
	h := w.Header()
	h.Del("Content-Disposition")
	h.Del("Last-Modified")
	h.Set("Content-Type", "text/plain;charset=UTF-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "Error %d: %s\n", status, msg)
}

// contentType resolves the media type of a paste from an explicit override or
// its extension, without parameters.
func contentType(override, ext string) string {
	if override != "" {
		return override
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				return mt
			}
		}
	}
	return "text/plain"
}

// encodeRFC5987 percent-encodes s for use in an ext-value, keeping attr-chars.
func encodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
