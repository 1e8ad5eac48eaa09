package api

import (
	"net/http"

	"github.com/shaharia-lab/emitter/internal/build"
)

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{
		"version":    build.Version,
		"commit":     build.CommitSHA,
		"build_date": build.BuildDate,
	}
	if v, err := build.SemVer(); err == nil {
		body["semver"] = v.String()
	}
	writeJSON(w, http.StatusOK, body)
}
