// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Pre-commit runs the checks that must pass before the writeups site is
// committed.
//
// Besides the usual Go checks (gofmt, staticcheck, tests, go mod tidy and
// copyright headers), it validates site.yaml with the check tool and does a
// throwaway production build of the site. The build catches content errors
// the configuration check alone doesn't see, such as broken front matter or a
// stylesheet that can't be parsed.
//
// In CI (CI=true), tests run with the race detector and the working tree must
// stay clean after the checks.
package main

import (
	"bytes"
	"log"
	"os"
	"os/exec"

	"go.astrophena.name/writeups/internal/devtools"
)

func main() {
	log.SetFlags(0)
	devtools.EnsureRoot()

	isCI := os.Getenv("CI") == "true"

	var w bytes.Buffer

	run(&w, "gofmt", "-d", ".")
	if diff := w.String(); diff != "" {
		log.Fatalf("Run gofmt on these files:\n\t%v", diff)
	}

	run(&w, "go", "tool", "staticcheck", "./...")

	if isCI {
		run(&w, "go", "test", "-race", "./...")
	} else {
		run(&w, "go", "test", "./...")
	}

	run(&w, "go", "mod", "tidy", "--diff")

	// The site configuration must stay valid, and the site must build.
	run(&w, "go", "tool", "check")
	dst, err := os.MkdirTemp("", "writeups-build-*")
	if err != nil {
		log.Fatal(err)
	}
	run(&w, "go", "tool", "build", "-prod", "-skip-feed", dst)
	os.RemoveAll(dst)

	run(&w, "go", "tool", "addcopyright")
	if isCI {
		run(&w, "git", "diff", "--exit-code")
	}
}

func run(buf *bytes.Buffer, cmd string, args ...string) {
	buf.Reset()
	c := exec.Command(cmd, args...)
	c.Stdout = buf
	c.Stderr = buf
	if err := c.Run(); err != nil {
		log.Fatalf("%s failed: %v:\n%v", cmd, err, buf.String())
	}
}
