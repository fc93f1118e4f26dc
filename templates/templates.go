// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package templates contains the default page layout for sites without a
// templates directory.
package templates

import _ "embed"

// Layout is the default page layout template. It's parsed as the "layout"
// template.
//
//go:embed layout.html
var Layout []byte
