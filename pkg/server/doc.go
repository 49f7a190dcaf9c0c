// Package server exposes the throttle over HTTP.
//
// The chat front end calls POST /v1/admit before forwarding a user's
// message or document to the model:
//
//	POST /v1/admit
//	{"user_id": "42", "category": "text_query"}
//
//	200 OK                      429 Too Many Requests
//	X-RateLimit-Limit: 10       Retry-After: 1740
//	X-RateLimit-Remaining: 9    X-RateLimit-Remaining: 0
//	{"allowed": true, ...}      {"allowed": false, "message": "...", ...}
//
// Unknown categories are admitted without limit and carry no quota
// headers. Internal throttle faults are admitted with outcome "fail_open".
//
// Operator endpoints:
//
//	GET    /v1/users/{user_id}/quota   per-category usage of one user
//	DELETE /v1/users/{user_id}         forget a user (204, or 404 if unknown)
//	GET    /v1/stats                   registry totals
//	GET    /v1/policies                current quota table
//
// The /v1 routes share a per-client token bucket. Liveness, readiness,
// version and Prometheus endpoints are mounted on the paths configured in
// the telemetry section.
//
// Every request gets an X-Request-ID (the caller's, or a new UUID), a
// structured log line, a server span and request metrics labelled by route
// pattern. Errors use a single envelope:
//
//	{"error": {"type": "invalid_request", "message": "...", "request_id": "..."}}
package server
