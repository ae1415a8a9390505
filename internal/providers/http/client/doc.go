// Package client implements the file transfer client used by the download
// worker.
//
// A Client performs one blocking GET at a time and streams the body into a
// destination file through a reader that enforces a byte-rate limit, honours
// pause and cancel requests and tracks percent progress. Control accessors
// never wait on network I/O.
//
//	c := client.New(client.Options{Logger: log})
//	switch c.Transfer(ctx, url, "/opt/CDL/package2001", 1024) {
//	case client.Success:
//	case client.DiskError:
//	case client.HTTPError:
//	}
package client
