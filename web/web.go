// Package web bundles the HTML templates and documents served by the pastebin.
package web

import "embed"

// Templates holds the page templates.
//
//go:embed templates/*.tmpl
var Templates embed.FS

// Static holds the documents and assets served as-is or rendered at startup.
//
//go:embed static
var Static embed.FS
