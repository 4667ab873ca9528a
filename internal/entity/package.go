package entity

import "time"

type DownloadStatus string

const (
	StatusNotQueued  DownloadStatus = "NOT_QUEUED"
	StatusQueued     DownloadStatus = "QUEUED"
	StatusInProgress DownloadStatus = "IN_PROGRESS"
	StatusDone       DownloadStatus = "DONE"
)

// TitleState is the download state of one book archive.
type TitleState struct {
	Title         string         `json:"title"`
	Status        DownloadStatus `json:"status"`
	RemoteUpdated *time.Time     `json:"remote_updated,omitempty"`
	LocalUpdated  *time.Time     `json:"local_updated,omitempty"`
}

// Stale reports whether the remote archive is newer than the local copy.
func (t TitleState) Stale() bool {
	if t.RemoteUpdated == nil {
		return false
	}
	if t.LocalUpdated == nil {
		return true
	}
	return t.RemoteUpdated.After(*t.LocalUpdated)
}

// PackageState groups titles by category for the download screen.
type PackageState struct {
	Name          string     `json:"name"`
	HeName        string     `json:"he_name,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	RemoteUpdated *time.Time `json:"remote_updated,omitempty"`
	LocalUpdated  *time.Time `json:"local_updated,omitempty"`
	Clicked       bool       `json:"clicked"`
	Disabled      bool       `json:"disabled"`
}

type Progress struct {
	ReceivedBytes int64 `json:"received_bytes"`
	TotalBytes    int64 `json:"total_bytes"`
}
