package push

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Phase of a consolidated event as carried in the lifecycle message.
// NEW (motion) -> SNAPSHOT_READY (crop) -> CLIP_READY (play) is the expected
// forward path; DISCARDED is terminal and clears the slot; anything
// unrecognized classifies as UNKNOWN and takes no action beyond logging.
type Phase string

const (
	PhaseNew           Phase = "NEW"
	PhaseSnapshotReady Phase = "SNAPSHOT_READY"
	PhaseClipReady     Phase = "CLIP_READY"
	PhaseDiscarded     Phase = "DISCARDED"
	PhaseUnknown       Phase = "UNKNOWN"
)

// ParsePhase classifies a raw phase string, case-insensitively.
func ParsePhase(s string) Phase {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEW":
		return PhaseNew
	case "SNAPSHOT_READY":
		return PhaseSnapshotReady
	case "CLIP_READY":
		return PhaseClipReady
	case "DISCARDED":
		return PhaseDiscarded
	default:
		return PhaseUnknown
	}
}

// Payload field keys. The channel delivers a flat string-keyed map.
const (
	keyCeID            = "ce_id"
	keyPhase           = "phase"
	keyClear           = "clear_notification"
	keyThreatLevel     = "threat_level"
	keyCamera          = "camera"
	keyLiveFrameProxy  = "live_frame_proxy"
	keyHostedSnapshot  = "hosted_snapshot"
	keyNotificationGIF = "notification_gif"
	// Some backend versions send the literal filename as the key.
	keyNotificationGIFAlt = "notification.gif"
	keyCroppedImageURL    = "cropped_image_url"
	keyImageURL           = "image_url"
	keyTitle              = "title"
	keyDescription        = "description"
	keyHostedClip         = "hosted_clip"
)

// EventNotification is the typed form of one inbound lifecycle payload.
// Constructed per message, consumed by the dispatcher, never persisted.
type EventNotification struct {
	EventID     string
	Phase       Phase
	Clear       bool
	ThreatLevel int

	Camera          string
	LiveFrameProxy  string
	HostedSnapshot  string
	NotificationGIF string
	CroppedImageURL string
	ImageURL        string
	Title           string
	Description     string
	HostedClip      string
}

// Classify parses a raw payload map. It never rejects: a missing ce_id is
// replaced with a random identifier so the message can still occupy a slot,
// invalid numerics default to 0, and an unknown phase string becomes
// PhaseUnknown. Push messages cannot be retried or NACKed, so defaulting
// beats erroring.
func Classify(data map[string]string) EventNotification {
	id := strings.TrimSpace(data[keyCeID])
	if id == "" {
		id = uuid.New().String()
	}
	gif := nonBlank(data[keyNotificationGIF])
	if gif == "" {
		gif = nonBlank(data[keyNotificationGIFAlt])
	}
	return EventNotification{
		EventID:         id,
		Phase:           ParsePhase(data[keyPhase]),
		Clear:           strings.EqualFold(strings.TrimSpace(data[keyClear]), "true"),
		ThreatLevel:     parseIntOrZero(data[keyThreatLevel]),
		Camera:          nonBlank(data[keyCamera]),
		LiveFrameProxy:  nonBlank(data[keyLiveFrameProxy]),
		HostedSnapshot:  nonBlank(data[keyHostedSnapshot]),
		NotificationGIF: gif,
		CroppedImageURL: nonBlank(data[keyCroppedImageURL]),
		ImageURL:        nonBlank(data[keyImageURL]),
		Title:           nonBlank(data[keyTitle]),
		Description:     nonBlank(data[keyDescription]),
		HostedClip:      nonBlank(data[keyHostedClip]),
	}
}

func nonBlank(s string) string {
	return strings.TrimSpace(s)
}

func parseIntOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// SlotID maps an event id to a stable non-negative slot handle. Repeated
// phases for the same event hit the same slot so the alert is replaced, not
// duplicated. 0 is reserved for the badge, so a zero hash maps to 1.
// Collisions across distinct ids are tolerated: the later writer's alert
// wins.
func SlotID(eventID string) int32 {
	var h int32
	for _, r := range eventID {
		h = 31*h + int32(r)
	}
	h &= 0x7FFFFFFF
	if h == 0 {
		return 1
	}
	return h
}
