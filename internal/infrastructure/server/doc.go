// Package server is the composition root: it builds every component from the
// loaded configuration, wires the notification listeners and serves the API.
package server
