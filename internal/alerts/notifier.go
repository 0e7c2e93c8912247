package alerts

// BadgeSlot is the reserved slot for the unread-count badge. SlotID never
// produces 0, so the badge can't collide with an event alert.
const BadgeSlot int32 = 0

// Actions a client can render on an alert.
const (
	ActionPlay         = "play"
	ActionMarkReviewed = "mark_reviewed"
	ActionKeep         = "keep"
)

// Alert is one post-or-replace notification for a slot. Posting to an
// occupied slot replaces the previous content; there is never more than one
// active alert per slot.
type Alert struct {
	EventID     string   `json:"event_id,omitempty"`
	Title       string   `json:"title"`
	Body        string   `json:"body,omitempty"`
	Camera      string   `json:"camera,omitempty"`
	ThreatLevel int      `json:"threat_level,omitempty"`
	Image       []byte   `json:"image,omitempty"`
	BigPicture  bool     `json:"big_picture,omitempty"`
	ClipPath    string   `json:"clip_path,omitempty"`
	Actions     []string `json:"actions,omitempty"`
	// Badge alerts are silent and carry only a count.
	Badge bool `json:"badge,omitempty"`
	Count int  `json:"count,omitempty"`
}

// Notifier is the platform alert surface: post-or-replace by slot id, cancel
// by slot id. Cancelling an absent slot is a no-op. Implementations must be
// safe for concurrent use; out-of-order posts to the same slot are resolved
// last-write-wins.
type Notifier interface {
	Post(slot int32, a Alert)
	Cancel(slot int32)
}
