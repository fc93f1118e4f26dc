// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Check validates the site configuration and prints what it resolves to.

# Usage

	$ go tool check [flags]

Check loads the configuration the same way build does and exits with an
error naming the offending option if it is invalid.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
