// Package runtime is the HTTP/JSON client for the runtime manager, the
// collaborator that starts and controls application containers.
//
// Every call posts to /containers (run) or /containers/{id}/{action} and
// expects a {"success": bool, "error": string} envelope. Calls go through a
// circuit breaker so a dead runtime manager fails fast.
package runtime
