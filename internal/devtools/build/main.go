// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/writeups/internal/devtools"
	"go.astrophena.name/writeups/internal/site"
)

func main() { cli.Main(new(app)) }

type app struct {
	config   string
	prod     bool
	skipFeed bool
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.config, "config", "", "Read configuration from `file`.")
	fs.BoolVar(&a.prod, "prod", false, "Build in a production mode.")
	fs.BoolVar(&a.skipFeed, "skip-feed", false, "Don't build the Atom feed.")
}

func (a *app) Run(ctx context.Context) error {
	devtools.EnsureRoot()

	args := cli.GetEnv(ctx).Args
	if len(args) > 1 {
		return fmt.Errorf("%w: want at most one output directory", cli.ErrInvalidArgs)
	}

	sc, err := devtools.LoadConfig(a.config)
	if err != nil {
		return err
	}

	c := &site.Config{
		Site:     sc,
		Prod:     a.prod,
		SkipFeed: a.skipFeed,
	}
	if len(args) > 0 {
		c.Dst = args[0]
	}
	return site.Build(ctx, c)
}
