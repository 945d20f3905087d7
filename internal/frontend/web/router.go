// Package web routes HTTP traffic: the websocket endpoint, static
// assets, and the room pages clients share by link.
package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// assetCacheControl is the cache policy for fingerprint-free static
// assets. The clients hard-reload on deploy, so a year is safe.
const assetCacheControl = "public, max-age=31536000"

// NewRouter builds the HTTP routing table.
//
// Precondition: wsHandler and logger must be non-nil; staticDir may be
// empty, which disables asset serving.
// Postcondition: Returns a handler serving /ws, static assets, and the
// room catch-all.
func NewRouter(staticDir string, wsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/ws", wsHandler)

	index := filepath.Join(staticDir, "index.html")

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		serveFile(w, req, index)
	})

	// Shared room links land here; the page itself resolves the code
	// over the websocket.
	r.Get("/{code}", func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")
		if staticDir != "" && isAsset(staticDir, code) {
			w.Header().Set("Cache-Control", assetCacheControl)
			http.ServeFile(w, req, filepath.Join(staticDir, code))
			return
		}
		serveFile(w, req, index)
	})

	if staticDir != "" {
		assets := http.StripPrefix("/assets/", http.FileServer(http.Dir(staticDir)))
		r.Get("/assets/*", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", assetCacheControl)
			assets.ServeHTTP(w, req)
		})
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Debug("redirecting unknown path",
			zap.String("path", req.URL.Path),
		)
		http.Redirect(w, req, "/", http.StatusFound)
	})

	return r
}

// serveFile sends the given file, or redirects home when it is missing
// so a bad deploy degrades to the lobby instead of a 404 page.
func serveFile(w http.ResponseWriter, req *http.Request, path string) {
	if _, err := os.Stat(path); err != nil {
		if req.URL.Path == "/" {
			// Redirecting home from home would loop.
			http.NotFound(w, req)
			return
		}
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}
	http.ServeFile(w, req, path)
}

// isAsset reports whether name is a plain file directly under dir.
// Room codes never contain dots, so anything with an extension is
// treated as an asset request.
func isAsset(dir, name string) bool {
	if !strings.Contains(name, ".") || strings.Contains(name, "/") {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
