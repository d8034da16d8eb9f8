package api

// ErrorResponse is returned for transport-level failures. Dispatcher
// responses are written verbatim and use their own {"message": ...} body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string   `json:"status"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	TimeoutSeconds float64  `json:"timeout_seconds"`
	Handlers       []string `json:"handlers"`
}
