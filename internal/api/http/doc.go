// Package http exposes the download manager and the lifecycle coordinator
// over a gin JSON API.
//
// Domain errors map onto status codes: invalid input is 400, unknown
// downloads and files are 404, "not loaded" or "nothing in progress" is 409,
// lack of network or a stopped manager is 503 and waits that time out are
// 504. Failure bodies carry {"success": false, "errorReason": "..."}.
//
// Routes:
//
//	POST   /downloads                     start a download
//	POST   /downloads/:id/{pause,resume,cancel}
//	PUT    /downloads/:id/ratelimit       {"bytesPerSec": n}
//	GET    /downloads/:id/progress
//	DELETE /downloads/file?locator=...
//	GET    /downloads/storage
//	GET    /apps                          loaded apps
//	POST   /apps                          spawn
//	GET    /apps/:appId
//	GET    /apps/:appId/loaded
//	POST   /apps/:appId/{close,ready,state-change-complete}
//	PUT    /instances/:id/state           {"targetState": "ACTIVE"}
//	POST   /instances/:id/{unload,kill,intent}
//	POST   /runtime/events, /window/events
package http
