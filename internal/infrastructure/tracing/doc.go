/*
Package tracing correlates API requests with the collaborator calls they
cause.

HTTPMiddleware assigns every inbound request a trace id (reusing the caller's
X-Trace-ID when sent), stores it in the request context and echoes it in the
response. The runtime and window clients read it back with FromContext and
forward it on their own requests, so one spawn can be followed through the
runtime manager's and window manager's logs.

# Usage

	router.Use(tracing.HTTPMiddleware(logger))

	traceID := tracing.FromContext(ctx)
*/
package tracing
