package download

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/http/client"
)

// MinRetries is the lowest retry budget a download can have
const MinRetries = 2

// FailReason classifies a failed download
type FailReason string

const (
	FailReasonNone            FailReason = ""
	FailReasonDiskPersistence FailReason = "DISK_PERSISTENCE_FAILURE"
	FailReasonDownload        FailReason = "DOWNLOAD_FAILURE"
)

// Options are the caller-supplied download settings
type Options struct {
	Priority  bool   `json:"priority"`
	Retries   uint32 `json:"retries"`
	RateLimit uint64 `json:"rateLimit"`
}

// Info is one requested transfer
type Info struct {
	ID          string
	URL         string
	Priority    bool
	Retries     uint32
	RateLimit   uint64
	FileLocator string
	Cancelled   bool
}

// Status is one entry of a download status notification
type Status struct {
	DownloadID  string     `json:"downloadId"`
	FileLocator string     `json:"fileLocator"`
	FailReason  FailReason `json:"failReason,omitempty"`
}

// StorageDetails reports download directory usage
type StorageDetails struct {
	QuotaKB uint64 `json:"quotaKB"`
	UsedKB  uint64 `json:"usedKB"`
}

// Notification receives download status events as a JSON array
type Notification interface {
	OnAppDownloadStatus(statusJSON string)
}

// Transferer performs a single transfer at a time
type Transferer interface {
	Transfer(ctx context.Context, url, destination string, bytesPerSec uint64) client.Result
	Progress() uint8
	StatusCode() int
	SetRateLimit(bytesPerSec uint64)
	Cancel()
	Pause()
	Resume()
	Reset()
}

func failReasonOf(result client.Result) FailReason {
	switch result {
	case client.Success:
		return FailReasonNone
	case client.DiskError:
		return FailReasonDiskPersistence
	default:
		return FailReasonDownload
	}
}
