// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Tab is a browser tab as seen by the browser host.
type Tab struct {
	// ID is the small integer id handed out by the host. It is stable for
	// the lifetime of the tab.
	ID int `json:"id"`

	// TargetID is the DevTools target id backing the tab.
	TargetID string `json:"target_id,omitempty"`

	// URL is the tab's current location.
	URL string `json:"url"`
}

// World selects the script execution world used for injection.
type World string

const (
	// WorldIsolated runs in a sandbox that shares the DOM but not page globals.
	WorldIsolated World = "isolated"
	// WorldMain runs with page privileges and sees page-defined globals
	// such as an in-page PDF viewer application.
	WorldMain World = "main"
)

// InjectRequest asks the host to run the PDF locator inside a tab.
type InjectRequest struct {
	TabID     int   `json:"tab_id"`
	World     World `json:"world"`
	AllFrames bool  `json:"all_frames"`
	IsBlob    bool  `json:"is_blob"`
}

// DownloadEvent describes a completed browser download.
type DownloadEvent struct {
	// URL is the final download URL.
	URL string `json:"url"`

	// Filename is the local file name or path chosen for the download.
	Filename string `json:"filename"`

	// MIME is the reported content type, if known.
	MIME string `json:"mime,omitempty"`

	// Referrer is the page that triggered the download, if known.
	Referrer string `json:"referrer,omitempty"`
}

// PDFDetected is delivered to the registered form tab when the monitor
// observes a PDF.
type PDFDetected struct {
	Action   string `json:"action"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
