package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// AppShell answers every path no route claimed. Unknown API paths get a
// JSON 404; anything else is a client-side route of the frontend and gets
// its index file.
type AppShell struct {
	indexFile string
	logger    *zap.Logger
}

// NewAppShell creates the fallback handler. An empty indexFile disables
// the frontend and every unclaimed path is a 404.
func NewAppShell(indexFile string, logger *zap.Logger) *AppShell {
	return &AppShell{indexFile: indexFile, logger: logger}
}

// ServeHTTP implements http.Handler
func (a *AppShell) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		a.notFound(w, "endpoint not found")
		return
	}
	if a.indexFile == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		a.notFound(w, "page not found")
		return
	}

	f, err := os.Open(a.indexFile)
	if err != nil {
		a.logger.Error("failed to open frontend index", zap.String("path", a.indexFile), zap.Error(err))
		a.notFound(w, "page not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		a.logger.Error("frontend index is not a readable file", zap.String("path", a.indexFile), zap.Error(err))
		a.notFound(w, "page not found")
		return
	}

	// ServeContent never rewrites the request path, so routes ending in
	// index.html get the shell too.
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (a *AppShell) notFound(w http.ResponseWriter, msg string) {
	if err := utils.WriteNotFound(w, msg); err != nil {
		a.logger.Error("failed to write not found response", zap.Error(err))
	}
}
