package core

import (
	"net/http"
)

// HealthStatus is the response body of the health endpoint.
type HealthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Commit      string `json:"commit,omitempty"`
}

// HandleHealth reports liveness. The service holds no connections or state to
// probe; a responding process is a healthy process.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, HealthStatus{
		Status:      "ok",
		Service:     s.Config.Service,
		Environment: s.Config.Environment,
		Version:     s.Config.Build.Version,
		Commit:      s.Config.Build.Commit,
	})
}
