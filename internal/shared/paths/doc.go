// Package paths provides the standardized filesystem layout used by the app
// manager.
//
// # Directory Structure
//
//	/opt/CDL/            (downloaded packages: package<downloadId>)
//
// # Usage
//
//	locator := paths.DownloadLocator(cfg.Download.Dir, "2001")
//	// /opt/CDL/package2001
package paths
