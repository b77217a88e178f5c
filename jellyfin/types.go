package jellyfin

// session is the wire shape of one entry from /Sessions. Only the fields
// the dashboard displays are decoded.
type session struct {
	ID             string     `json:"Id"`
	UserName       string     `json:"UserName"`
	Client         string     `json:"Client"`
	DeviceName     string     `json:"DeviceName"`
	PlayState      *playState `json:"PlayState"`
	NowPlayingItem *item      `json:"NowPlayingItem"`
}

type playState struct {
	IsPaused      bool  `json:"IsPaused"`
	PositionTicks int64 `json:"PositionTicks"`
}

type item struct {
	Name         string `json:"Name"`
	SeriesName   string `json:"SeriesName"`
	Type         string `json:"Type"`
	RunTimeTicks int64  `json:"RunTimeTicks"`
}

// Stream is one active playback session shaped for display.
type Stream struct {
	SessionID string  `json:"sessionId"`
	User      string  `json:"user"`
	Title     string  `json:"title"`
	Series    string  `json:"series,omitempty"`
	MediaType string  `json:"mediaType"`
	Device    string  `json:"device"`
	Client    string  `json:"client"`
	Paused    bool    `json:"paused"`
	Progress  float64 `json:"progress"`
}

// Snapshot is the shaped poll composite for a Jellyfin instance.
type Snapshot struct {
	ActiveStreams []Stream `json:"activeStreams"`
	TotalSessions int      `json:"totalSessions"`
}
