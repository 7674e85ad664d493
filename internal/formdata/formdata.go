// Package formdata decodes multipart/form-data bodies without treating part
// content as text, so binary uploads survive byte for byte.
package formdata

import (
	"bytes"
	"fmt"
	"mime"
	"regexp"
)

// Part is one named section of a multipart body. Content aliases the buffer
// passed to Parse.
type Part struct {
	Fields  map[string]string
	Content []byte
}

// Form maps a part's name field to the part.
type Form map[string]*Part

// Has reports whether a part named name was present.
func (f Form) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Value returns the content of the named part as a string and whether it was present.
func (f Form) Value(name string) (string, bool) {
	p, ok := f[name]
	if !ok {
		return "", false
	}
	return string(p.Content), true
}

// FormatError reports a structurally invalid multipart body.
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string {
	return "formdata: " + e.msg
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

var (
	crlf               = []byte("\r\n")
	dispositionHeader  = []byte("content-disposition:")
	dispositionPattern = regexp.MustCompile(`\b([\w-]+\*?)=(?:"([^"]*)"|([^\s;"]+))`)
)

type lineKind int

const (
	lineContent lineKind = iota
	lineBoundary
	lineClose
)

// Boundary extracts the boundary parameter of a multipart/form-data content type.
func Boundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", formatErrorf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		return "", formatErrorf("unexpected media type %q", mediaType)
	}
	b := params["boundary"]
	if b == "" {
		return "", formatErrorf("missing boundary")
	}
	return b, nil
}

// Parse splits body into parts delimited by boundary.
//
// Lines before the first boundary line are skipped. Within a part, only
// Content-Disposition headers are interpreted. Content spans from the first body
// line up to the CRLF preceding the next boundary line, so a content line that
// is itself equal to the boundary marker ends the part early.
func Parse(body []byte, boundary string) (Form, error) {
	if boundary == "" {
		return nil, formatErrorf("empty boundary")
	}
	marker := []byte("--" + boundary)

	pos := 0
	for {
		end := lineEnd(body, pos)
		if classify(body[pos:end], marker) == lineBoundary {
			pos = end + len(crlf)
			break
		}
		if end >= len(body) {
			return nil, formatErrorf("no boundary line found")
		}
		pos = end + len(crlf)
	}

	form := make(Form)
	var (
		inBody    bool
		bodyStart int
		current   = &Part{Fields: map[string]string{}}
	)
	for pos <= len(body) {
		end := lineEnd(body, pos)
		line := body[pos:end]

		if !inBody {
			switch {
			case len(line) == 0:
				inBody = true
				bodyStart = end + len(crlf)
			case hasPrefixFold(line, dispositionHeader):
				for k, v := range parseFields(line) {
					current.Fields[k] = v
				}
			}
			if end >= len(body) {
				if len(current.Fields) > 0 {
					return nil, formatErrorf("unexpected end of body in part headers")
				}
				return form, nil
			}
			pos = end + len(crlf)
			continue
		}

		kind := classify(line, marker)
		if kind != lineContent {
			name, ok := current.Fields["name"]
			if !ok {
				return nil, formatErrorf("part without name")
			}
			contentEnd := pos - len(crlf)
			if contentEnd < bodyStart {
				contentEnd = bodyStart
			}
			current.Content = body[bodyStart:contentEnd:contentEnd]
			form[name] = current
			if kind == lineClose {
				return form, nil
			}
			current = &Part{Fields: map[string]string{}}
			inBody = false
		}
		if end >= len(body) {
			return nil, formatErrorf("unexpected end of body, missing closing boundary")
		}
		pos = end + len(crlf)
	}
	return form, nil
}

// lineEnd returns the index of the next CRLF at or after start, or len(buf).
func lineEnd(buf []byte, start int) int {
	if start >= len(buf) {
		return len(buf)
	}
	i := bytes.Index(buf[start:], crlf)
	if i < 0 {
		return len(buf)
	}
	return start + i
}

func classify(line, marker []byte) lineKind {
	if !bytes.HasPrefix(line, marker) {
		return lineContent
	}
	switch rest := line[len(marker):]; {
	case len(rest) == 0:
		return lineBoundary
	case len(rest) == 2 && rest[0] == '-' && rest[1] == '-':
		return lineClose
	}
	return lineContent
}

func hasPrefixFold(line, prefix []byte) bool {
	return len(line) >= len(prefix) && bytes.EqualFold(line[:len(prefix)], prefix)
}

func parseFields(line []byte) map[string]string {
	fields := make(map[string]string)
	for _, m := range dispositionPattern.FindAllSubmatch(line, -1) {
		val := m[2]
		if val == nil {
			val = m[3]
		}
		fields[string(m[1])] = string(val)
	}
	return fields
}
