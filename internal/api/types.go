package api

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Endpoints int    `json:"endpoints"`
	Scored    int    `json:"scored"`
	Alerts    int    `json:"alerts"`
}

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	Error string `json:"error"`
}
