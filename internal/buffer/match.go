package buffer

import "strings"

// CandidatePrefix is prepended by the push/deep-link system to consolidated
// event folder names. The buffer's own listing omits it, so matching has to
// try both forms.
const CandidatePrefix = "ce_"

// Matches reports whether ev corresponds to the candidate id from a push
// payload or deep link. Exact event_id equality wins; consolidated events
// (camera == "events") also match on their folder name in subdir. Both checks
// are repeated with the "ce_" prefix stripped from the candidate, because the
// buffer stores the folder without it.
func Matches(ev *Event, candidateID string) bool {
	if candidateID == "" {
		return false
	}
	stripped := strings.TrimPrefix(candidateID, CandidatePrefix)
	return ev.EventID == candidateID ||
		(ev.Camera == "events" && ev.Subdir == candidateID) ||
		ev.EventID == stripped ||
		(ev.Camera == "events" && ev.Subdir == stripped)
}

// FindByCandidate returns the first event in list order matching candidateID.
// The buffer does not guarantee stripped ids are globally unique across
// cameras; if several events match, the first wins.
func FindByCandidate(events []Event, candidateID string) (*Event, bool) {
	for i := range events {
		if Matches(&events[i], candidateID) {
			return &events[i], true
		}
	}
	return nil, false
}
