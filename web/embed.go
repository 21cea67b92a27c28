// Package web embeds the HTML templates served by the submission server.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
