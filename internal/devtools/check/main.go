// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/writeups/internal/config"
	"go.astrophena.name/writeups/internal/devtools"
)

func main() { cli.Main(new(app)) }

type app struct {
	config string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.config, "config", "", "Read configuration from `file`.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if len(env.Args) > 0 {
		return fmt.Errorf("%w: no arguments expected", cli.ErrInvalidArgs)
	}

	c, err := devtools.LoadConfig(a.config)
	if err != nil {
		return err
	}
	return describe(env.Stdout, c)
}

// describe writes a summary of the resolved configuration to w.
func describe(w io.Writer, c *config.Config) error {
	var names []string
	for _, in := range c.Integrations() {
		names = append(names, in.Name())
	}
	var caps []string
	for _, capability := range c.Capabilities() {
		caps = append(caps, string(capability))
	}
	_, err := fmt.Fprintf(w, `output:          %s
prefix:          %s
trailing slash:  %s
build format:    %s
integrations:    %s
capabilities:    %s
highlight theme: %s (%s)
`,
		c.Output(),
		c.Prefix(),
		c.TrailingSlash(),
		c.Format(),
		strings.Join(names, ", "),
		strings.Join(caps, ", "),
		c.Markdown().HighlightTheme, c.Markdown().Style,
	)
	return err
}
