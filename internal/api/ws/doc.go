// Package ws streams lifecycle and download notifications to websocket
// clients.
//
// The Hub registers itself as a lifecycle state listener, a lifecycle
// listener and a download notification sink, and broadcasts each callback as
// a JSON frame:
//
//	{"type":"appStateChanged","appId":"...","newState":"ACTIVE"}
//	{"type":"appLifecycleStateChanged","appId":"...","appInstanceId":"...","oldState":"PAUSED","newState":"ACTIVE"}
//	{"type":"appDownloadStatus","statuses":[{"downloadId":"2001","fileLocator":"/opt/CDL/package2001"}]}
//
// Clients may send {"type":"ping"} and receive {"type":"pong"}.
package ws
