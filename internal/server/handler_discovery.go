package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "mise API",
		Version:     "v1",
		Description: "Kitchen task scheduler: minimum-makespan schedules for multi-dish preparation",
		Endpoints: []endpointInfo{
			{"/api/v1/schedules", []string{"POST"}, "Solve a task list and return the optimal schedule"},
			{"/api/v1/schedules/validate", []string{"POST"}, "Validate a task list without solving"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
