// Package api adapts HTTP requests to the service layer: it decodes and
// validates payloads, reads the caller identity placed in the context by the
// auth middleware, maps service errors to status codes and writes JSON
// responses with the request's trace ID.
package api
