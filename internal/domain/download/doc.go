/*
Package download implements the package download queue.

Requests land in a priority or a regular FIFO queue and are processed one at a
time by a single worker goroutine. Only the download currently being
transferred can be paused, resumed, cancelled, re-rated or polled for
progress; queued downloads are not addressable until they start.

Failed transfers are retried with a golden-ratio backoff (2, 3, 5, 8, ...
units after the first attempt) unless the server answered 404 or the download
was cancelled. Every request ends with exactly one status notification:

	[{"downloadId":"2001","fileLocator":"/opt/CDL/package2001","failReason":"DOWNLOAD_FAILURE"}]

failReason is omitted on success.
*/
package download
