package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// AssetServer creates a handler to serve static files from a specific base
// directory. It expects a chi route with a trailing wildcard, e.g.:
//
//	r.Get("/failed_attempts/*", AssetServer(cfg.FailedAttemptsPath))
func AssetServer(baseDir string) http.HandlerFunc {
	cleanBase := filepath.Clean(baseDir)
	log.Printf("Serving assets from directory: %s", cleanBase)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := chi.URLParam(r, "*")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		requestedPath := filepath.Clean(filepath.Join(cleanBase, relativePath))
		if !strings.HasPrefix(requestedPath, cleanBase) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside designated directory: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, requestedPath, cleanBase)
			return
		}

		if _, err := os.Stat(requestedPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating asset file %s: %v", requestedPath, err)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		http.ServeFile(w, r, requestedPath)
	}
}
