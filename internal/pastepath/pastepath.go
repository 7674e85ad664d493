// Package pastepath decodes and builds paste URL paths of the form
// [/<role>]/<short>[:<secret>][.<ext>] or [/<role>]/<short>[:<secret>]/<filename>.
package pastepath

import "strings"

// Sep separates a paste's short name from its admin secret.
const Sep = ":"

// Path is a decoded request path. Absent components are empty strings.
type Path struct {
	Role     string
	Short    string
	Secret   string
	Ext      string
	Filename string
}

// Parse decomposes pathname. It never fails.
func Parse(pathname string) Path {
	var p Path
	if len(pathname) > 2 && pathname[2] == '/' {
		p.Role = pathname[1:2]
		pathname = pathname[2:]
	}

	if i := strings.LastIndex(pathname, "/"); i > 0 {
		p.Filename = pathname[i+1:]
		pathname = pathname[:i]
	}

	if p.Filename != "" {
		if dot := strings.LastIndex(p.Filename, "."); dot >= 0 {
			p.Ext = p.Filename[dot:]
		}
	} else if dot := strings.Index(pathname, "."); dot >= 0 {
		p.Ext = pathname[dot:]
		pathname = pathname[:dot]
	}

	pathname = strings.TrimPrefix(pathname, "/")
	if i := strings.Index(pathname, Sep); i >= 0 {
		p.Short = pathname[:i]
		p.Secret = pathname[i+len(Sep):]
	} else {
		p.Short = pathname
	}
	return p
}

// Public returns the public path of a paste.
func Public(short string) string {
	return "/" + short
}

// Admin returns the path carrying the admin secret.
func Admin(short, secret string) string {
	return "/" + short + Sep + secret
}

// WithRole returns the path of short under a single-character role prefix.
func WithRole(role, short string) string {
	return "/" + role + "/" + short
}

// WithFilename returns the suggested download path of short.
func WithFilename(short, filename string) string {
	return "/" + short + "/" + filename
}
