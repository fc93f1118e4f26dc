// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Serve serves the site for local development.

# Usage:

	$ go tool serve [flags] [dir]

Serve performs an initial build into dir (the configured output directory
by default) and serves it under the configured base path. It then watches
for file changes in the "pages", "static", "styles" and "templates"
directories and automatically rebuilds the site.

Pages that aren't prerendered in server and hybrid output modes are
rendered from their sources on each request.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
