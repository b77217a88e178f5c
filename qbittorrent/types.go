package qbittorrent

// torrentInfo is the wire shape of one entry from /api/v2/torrents/info.
type torrentInfo struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Size     int64   `json:"size"`
	Dlspeed  int64   `json:"dlspeed"`
	Upspeed  int64   `json:"upspeed"`
	Ratio    float64 `json:"ratio"`
	Category string  `json:"category"`
	ETA      int64   `json:"eta"`
}

// transferInfo is the wire shape of /api/v2/transfer/info.
type transferInfo struct {
	DlInfoSpeed      int64  `json:"dl_info_speed"`
	UpInfoSpeed      int64  `json:"up_info_speed"`
	DlInfoData       int64  `json:"dl_info_data"`
	UpInfoData       int64  `json:"up_info_data"`
	ConnectionStatus string `json:"connection_status"`
}

// Torrent is one torrent shaped for display.
type Torrent struct {
	Hash          string  `json:"hash"`
	Name          string  `json:"name"`
	State         string  `json:"state"`
	Progress      float64 `json:"progress"`
	Size          int64   `json:"size"`
	DownloadSpeed int64   `json:"downloadSpeed"`
	UploadSpeed   int64   `json:"uploadSpeed"`
	Ratio         float64 `json:"ratio"`
	Category      string  `json:"category,omitempty"`
	ETA           int64   `json:"eta"`
}

// Transfer is the shaped global transfer state.
type Transfer struct {
	DownloadSpeed     int64  `json:"downloadSpeed"`
	UploadSpeed       int64  `json:"uploadSpeed"`
	SessionDownloaded int64  `json:"sessionDownloaded"`
	SessionUploaded   int64  `json:"sessionUploaded"`
	ConnectionStatus  string `json:"connectionStatus"`
}

// Snapshot is the shaped poll composite for a qBittorrent instance. Each
// field is refreshed independently; a failed sub-request leaves the prior
// value in place.
type Snapshot struct {
	Torrents    []Torrent `json:"torrents"`
	Downloading int       `json:"downloading"`
	Seeding     int       `json:"seeding"`
	Transfer    Transfer  `json:"transfer"`
}

// downloadingStates and seedingStates mirror the WebUI's grouping of the
// qBittorrent state machine.
var downloadingStates = map[string]struct{}{
	"downloading": {},
	"stalledDL":   {},
	"metaDL":      {},
	"queuedDL":    {},
	"forcedDL":    {},
	"allocating":  {},
	"checkingDL":  {},
}

var seedingStates = map[string]struct{}{
	"uploading":  {},
	"stalledUP":  {},
	"queuedUP":   {},
	"forcedUP":   {},
	"checkingUP": {},
}
