// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz and /readyz for probes; /readyz fails when the tracker store is down.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/auth/signup and /api/auth/login issue bearer tokens.
//   - POST /api/tracker/add, GET /api/tracker/list and DELETE /api/tracker/remove/{id}
//     manage the caller's trackers.
//   - GET /api/mediacheck/{handle} classifies an account's recent images.
package api
