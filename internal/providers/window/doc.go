// Package window is the HTTP/JSON client for the window manager, which owns
// displays and reports render progress back to the lifecycle coordinator.
package window
