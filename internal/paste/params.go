package paste

import (
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"pastebin/internal/formdata"
)

// Form field names.
const (
	FieldContent = "c"
	FieldPrivate = "p"
	FieldName    = "n"
	FieldSecret  = "s"
	FieldExpire  = "e"
)

// CustomPrefix separates custom names from generated ones.
const CustomPrefix = "~"

// MinExpiration is the shortest accepted expiration, in seconds.
const MinExpiration = 60

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9+_\-\[\]*$@,;]{3,}$`)
	expirePattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([mhdwM]?)\s*$`)

	unitSeconds = map[string]float64{
		"":  1,
		"m": 60,
		"h": 3600,
		"d": 3600 * 24,
		"w": 3600 * 24 * 7,
		"M": 3600 * 24 * 7 * 30,
	}
)

// WriteParams are the validated inputs of a create or update.
type WriteParams struct {
	Content  []byte
	Filename string
	Name     string
	Private  bool
	Secret   string
	Expire   int64 // seconds, 0 means not given
}

// ParamsFromForm validates a parsed multipart form.
func ParamsFromForm(form formdata.Form, maxBytes int) (WriteParams, error) {
	var p WriteParams

	c, ok := form[FieldContent]
	if !ok {
		return p, Errorf(http.StatusBadRequest, "cannot find content in formdata")
	}
	if maxBytes > 0 && len(c.Content) > maxBytes {
		return p, Errorf(http.StatusRequestEntityTooLarge, "payload too large")
	}
	p.Content = c.Content
	p.Filename = dispositionFilename(c.Fields)
	p.Private = form.Has(FieldPrivate)
	p.Secret, _ = form.Value(FieldSecret)

	if name, ok := form.Value(FieldName); ok {
		if !namePattern.MatchString(name) {
			return p, Errorf(http.StatusBadRequest, "name '%s' not satisfying regexp %s", name, namePattern)
		}
		p.Name = name
	}

	if e, ok := form.Value(FieldExpire); ok && e != "" {
		secs, err := ParseExpiration(e)
		if err != nil {
			return p, err
		}
		p.Expire = secs
	}
	return p, nil
}

// ParseExpiration converts an expiration such as "3600", "100m" or "1 d" into
// seconds. Units are m, h, d, w and M, where M is thirty weeks.
func ParseExpiration(s string) (int64, error) {
	m := expirePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, Errorf(http.StatusBadRequest, "cannot parse expire '%s'", s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, Errorf(http.StatusBadRequest, "cannot parse expire '%s' as a number", s)
	}
	secs := math.Floor(n * unitSeconds[m[2]])
	if secs >= math.MaxInt64 {
		return 0, Errorf(http.StatusBadRequest, "expire '%s' is too large", s)
	}
	if secs < MinExpiration {
		return 0, Errorf(http.StatusBadRequest, "expire should be at least %d seconds, '%s' given", MinExpiration, s)
	}
	return int64(secs), nil
}

// dispositionFilename prefers the RFC 5987 filename* field over filename.
func dispositionFilename(fields map[string]string) string {
	if ext, ok := fields["filename*"]; ok {
		if i := strings.Index(ext, "''"); i >= 0 {
			if name, err := url.PathUnescape(ext[i+2:]); err == nil && name != "" {
				return name
			}
		}
	}
	return fields["filename"]
}

// IsURL reports whether content, once trimmed, is a single absolute http(s) URL.
func IsURL(content []byte) bool {
	_, ok := RedirectTarget(content)
	return ok
}

// RedirectTarget returns the URL stored in content, if it is one.
func RedirectTarget(content []byte) (string, bool) {
	if len(content) > 8192 || !utf8.Valid(content) {
		return "", false
	}
	s := strings.TrimSpace(string(content))
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return s, true
}
