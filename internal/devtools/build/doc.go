// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Build builds the site.

# Usage

	$ go tool build [flags] [dir]

Builds the site into the specified directory dir. If dir is not provided,
the output directory from the configuration is used ("build" by default).

The configuration is read from the file passed with -config, or from the
first of site.yaml, site.yml, site.toml and site.json found in the current
directory. Without any of them, the writeups site configuration is used.

With -prod, drafts are left out and links are absolute URLs under the
configured site origin and base path.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
