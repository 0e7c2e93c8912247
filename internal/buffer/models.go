package buffer

// Event is one entry from GET /events on the event buffer. Field names match
// the server's JSON. Consolidated multi-camera events arrive with
// Camera == "events" and the grouping folder name in Subdir.
type Event struct {
	EventID       string       `json:"event_id"`
	Camera        string       `json:"camera"`
	Subdir        string       `json:"subdir"`
	Timestamp     string       `json:"timestamp"`
	Summary       string       `json:"summary,omitempty"`
	Title         string       `json:"title,omitempty"`
	Description   string       `json:"description,omitempty"`
	Label         string       `json:"label,omitempty"`
	Severity      string       `json:"severity,omitempty"`
	ThreatLevel   int          `json:"threat_level"`
	ReviewSummary string       `json:"review_summary,omitempty"`
	HasClip       bool         `json:"has_clip"`
	HasSnapshot   bool         `json:"has_snapshot"`
	Viewed        bool         `json:"viewed"`
	HostedClip    string       `json:"hosted_clip,omitempty"`
	HostedSnapshot string      `json:"hosted_snapshot,omitempty"`
	HostedClips   []HostedClip `json:"hosted_clips,omitempty"`
	Cameras       []string     `json:"cameras,omitempty"`
	Consolidated  bool         `json:"consolidated"`
	Ongoing       bool         `json:"ongoing"`
	Saved         bool         `json:"saved"`
}

// HostedClip is a per-camera clip inside a consolidated event.
type HostedClip struct {
	Camera string `json:"camera"`
	Path   string `json:"path"`
}

// EventsResponse is the body of GET /events.
type EventsResponse struct {
	Cameras    []string `json:"cameras"`
	TotalCount int      `json:"total_count"`
	Events     []Event  `json:"events"`
}

// UnreadCountResponse is the body of GET /api/events/unread_count.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// RegisterDeviceRequest is the body for POST /api/mobile/register.
type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// RegisterDeviceResponse is the generic ack the buffer returns for
// register/snooze-clear style endpoints.
type RegisterDeviceResponse struct {
	Status string `json:"status"`
}
