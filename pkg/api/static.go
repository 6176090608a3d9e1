package api

import (
	"io/fs"
	"net/http"
	"strings"
)

// handleStatic serves the SPA bundle. Paths that do not name a file fall back
// to index.html so client-side routes survive a reload.
func (s *Server) handleStatic() http.Handler {
	if s.opts.StaticFS == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not_found")
		})
	}

	fileServer := http.FileServer(http.FS(s.opts.StaticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" {
			if info, err := fs.Stat(s.opts.StaticFS, name); err != nil || info.IsDir() {
				r.URL.Path = "/"
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}
