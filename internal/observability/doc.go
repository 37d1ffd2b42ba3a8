// Package observability provides the zap logger factory and the Prometheus
// collectors for HTTP traffic, authentication outcomes and org-wide session
// revocation.
package observability
