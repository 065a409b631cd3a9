// Package httpapi provides the HTTP driving adapter for ReviewPulse.
//
// Routes:
//
//	POST /api/ingest/run                    run ingestion for a unit and quarter
//	POST /api/synthesize                    synthesise actions for a theme
//	GET  /api/manifests                     list manifests (?unit= filters)
//	GET  /api/manifests/{id}/themes         themes of a manifest
//	GET  /api/manifests/{id}/metrics        theme metrics of a manifest
//	GET  /api/manifests/{id}/trends         quarter-over-quarter trends
//	POST /api/manifests/{id}/recompute      rebuild metrics and trends
//	GET  /api/themes/{id}/actions           actions recorded for a theme
//	GET  /health                            liveness
//	GET  /metrics                           Prometheus metrics
//
// Failures are written as a domain.RunError with a status derived from the
// error kind. Stack traces are omitted in production.
package httpapi
