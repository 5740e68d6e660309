// Package web embeds the HTML templates and static assets served by the
// HTTP layer.
package web

import "embed"

// TemplatesFS holds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and page script.
//
//go:embed static/*
var StaticFS embed.FS
