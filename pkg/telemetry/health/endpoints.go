package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Health endpoint paths.
const (
	LivePath    = "/health/live"
	ReadyPath   = "/health/ready"
	VersionPath = "/version"
)

// VersionInfo contains build information.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler serves the liveness check.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness check. It answers 503 when any
// check fails.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler serves build information.
func VersionHandler(version string) http.HandlerFunc {
	info := VersionInfo{Version: version, GoVersion: runtime.Version()}
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Register mounts the health and version handlers on mux.
func Register(mux *http.ServeMux, checker *Checker, version string) {
	mux.HandleFunc(LivePath, checker.LivenessHandler())
	mux.HandleFunc(ReadyPath, checker.ReadinessHandler())
	mux.HandleFunc(VersionPath, VersionHandler(version))
}

func allowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
