package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets
var assetsFS embed.FS

// staticHandler serves the embedded frontend.
func (s *Server) staticHandler() http.Handler {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		// embed is checked at build time; a missing subdirectory is a
		// packaging bug.
		panic(err)
	}

	return http.FileServer(http.FS(sub))
}
