// Package middleware holds the gin middleware shared by the JSON API: CORS
// and per-caller request rate limiting.
package middleware
