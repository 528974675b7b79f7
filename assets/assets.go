// Package assets embeds the web application served at the root path.
// index.html is produced by cmd/minify from index.html.tpl, style.css and script.js.
package assets

import _ "embed"

//go:embed index.html
var Index []byte

//go:embed favicon.svg
var Favicon []byte
