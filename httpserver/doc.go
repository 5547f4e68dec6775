// Package httpserver implements the HTTP API of the script storage
// service.
//
// # Endpoints
//
// File operations:
//   - POST /api/files/{category}: upload a file into one of the upload
//     categories (script, cover, avatar), validated against the
//     category's size and content-type policy
//   - POST /api/scripts/{script_id}/file: upload a script document and
//     append it to the script's version history as the latest version
//   - GET /files/{namespace}/{filename}: serve a stored object by its
//     storage key
//
// Integrity administration:
//   - POST /api/admin/integrity/scan: read-only scan classifying every
//     file reference as valid or broken
//   - POST /api/admin/integrity/reconcile: scan plus corrective writes
//     for every broken reference
//
// Operational:
//   - GET /livez, /readyz: health checks
//   - GET /drain, /undrain: readiness toggling for rolling deploys
//   - /debug: pprof handlers, when enabled
//
// The server runs an optional second listener for Prometheus metrics.
// All request logging goes through the structured logging middleware.
package httpserver
