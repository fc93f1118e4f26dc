// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"

	"github.com/fsnotify/fsnotify"
)

var serveReadyHook func() // used in tests, called when Serve started serving the site

// debouncer delays execution of a function until a specified duration has
// passed without any new events.
type debouncer struct {
	d  time.Duration
	mu sync.Mutex
	f  func()
	t  *time.Timer
}

// newDebouncer creates a new debouncer.
func newDebouncer(d time.Duration, f func()) *debouncer {
	return &debouncer{
		d: d,
		f: f,
	}
}

// Do schedules a function to be executed.
func (d *debouncer) Do() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.t != nil {
		d.t.Stop()
	}

	d.t = time.AfterFunc(d.d, d.f)
}

// Serve builds the site and starts serving it on a provided host:port. The
// site is served under its base path and rebuilt when sources change. Pages
// that aren't prerendered are rendered on each request.
func Serve(ctx context.Context, c *Config, addr string) error {
	c.setDefaults()
	h := &handler{dst: c.Dst, root: strings.TrimSuffix(c.Site.Root(), "/")}

	logger.Info(ctx, "performing an initial build")
	if b, err := build(ctx, c); err != nil {
		logger.Error(ctx, "initial build failed", slog.Any("err", err))
	} else {
		h.set(b)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, dir := range []string{"pages", "static", "styles", "templates"} {
		if err := watchRecursive(watcher, filepath.Join(c.Src, dir)); err != nil {
			return err
		}
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", "http://"+l.Addr().String()+h.root+"/"))

	httpSrv := &http.Server{Handler: h}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				errCh <- err
			}
		}
	}()

	rebuild := func() {
		logger.Info(ctx, "triggering build")
		b, err := build(ctx, c)
		if err != nil {
			logger.Error(ctx, "failed to rebuild the site", slog.Any("err", err))
			return
		}
		h.set(b)
	}
	// It's better to have a bit of delay, so that we don't start building
	// the site on each keystroke.
	debouncer := newDebouncer(250*time.Millisecond, rebuild)

	go watch(ctx, watcher, debouncer)

	if serveReadyHook != nil {
		serveReadyHook()
	}

	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}

// watch schedules rebuilds on relevant changes reported by w. It returns when
// ctx is done or w is closed.
func watch(ctx context.Context, w *fsnotify.Watcher, d *debouncer) {
	logger.Info(ctx, "started watching for new changes")

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !shouldRebuild(event.Name, event.Op) {
				continue
			}
			logger.Info(ctx, "detected change, scheduling build",
				slog.String("name", event.Name),
				slog.Any("op", event.Op),
			)
			d.Do()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error(ctx, "watcher failed", slog.Any("err", err))
		case <-ctx.Done():
			return
		}
	}
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return walkIfExists(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

// Copied from
// https://github.com/brandur/modulir/blob/1ff912fdc45a79cb4d8d9f199d213ae9c3598cbd/watch.go#L201.
func shouldRebuild(path string, op fsnotify.Op) bool {
	base := filepath.Base(path)

	// Mac OS' worst mistake.
	if base == ".DS_Store" {
		return false
	}

	// Vim creates this temporary file to see whether it can write into a target
	// directory. It screws up our watching algorithm, so ignore it.
	if base == "4913" {
		return false
	}

	// A special case, but ignore creates on files that look like Vim backups.
	if strings.HasSuffix(base, "~") {
		return false
	}

	if op&fsnotify.Create != 0 {
		return true
	}

	if op&fsnotify.Remove != 0 {
		return true
	}

	if op&fsnotify.Write != 0 {
		return true
	}

	// Ignore everything else: chmod doesn't change the output and rename is
	// followed by a create.
	return false
}

// handler serves the built site under the site root.
type handler struct {
	dst  string
	root string // site root without the trailing slash, "" for "/"

	mu sync.Mutex
	b  *buildContext // last successful build
}

func (h *handler) set(b *buildContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.b = b
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if h.root != "" {
		if p == h.root {
			http.Redirect(w, r, h.root+"/", http.StatusFound)
			return
		}
		var ok bool
		if p, ok = strings.CutPrefix(p, h.root+"/"); !ok {
			h.serveNotFound(w, r)
			return
		}
	}
	p = path.Clean("/" + p)

	if h.serveOnDemand(w, r, p) {
		return
	}

	fsys := os.DirFS(h.dst)
	name, ok := lookup(fsys, p)
	if !ok {
		h.serveNotFound(w, r)
		return
	}
	d, err := fs.Stat(fsys, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.ServeContent(w, r, d.Name(), d.ModTime(), bytes.NewReader(b))
}

// lookup finds the file in fsys that serves the request path p. It tries p
// itself, then p.html, then p/index.html.
func lookup(fsys fs.FS, p string) (string, bool) {
	p = strings.TrimPrefix(p, "/")
	candidates := []string{p, p + ".html", path.Join(p, "index.html")}
	if p == "" {
		candidates = []string{"index.html"}
	}
	for _, name := range candidates {
		if d, err := fs.Stat(fsys, name); err == nil && !d.IsDir() {
			return name, true
		}
	}
	return "", false
}

// serveOnDemand renders the page for p if it's not prerendered. It reports
// whether such a page exists.
func (h *handler) serveOnDemand(w http.ResponseWriter, r *http.Request, p string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.b == nil {
		return false
	}
	page, ok := h.b.onDemand[routeKey(p)]
	if !ok {
		return false
	}

	out, err := h.b.renderOnDemand(page.path)
	if err != nil {
		logger.Error(r.Context(), "failed to render page", slog.String("path", page.path), slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return true
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if routeKey(p) == "/404" {
		w.WriteHeader(http.StatusNotFound)
	}
	w.Write(out)
	return true
}

// renderOnDemand reads the page source at path again and renders it.
func (b *buildContext) renderOnDemand(path string) ([]byte, error) {
	p, err := b.loadPage(path)
	if err != nil {
		return nil, err
	}
	out, err := b.render(p)
	if err != nil {
		return nil, err
	}
	if b.styleLink != "" {
		out = injectHead(out, b.styleLink)
	}
	return b.min.Bytes("text/html", out)
}

func (h *handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	if h.serveOnDemand(w, r, "/404") {
		return
	}
	f, err := os.Open(filepath.Join(h.dst, "404.html"))
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.Copy(w, f)
}
