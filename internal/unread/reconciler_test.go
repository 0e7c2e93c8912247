package unread

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jballard86/frigate-push-gateway/internal/buffer"
)

func TestEffectiveCountSubtractsResolved(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(5)
	r.RecordResolved("a")
	r.RecordResolved("b")
	assert.Equal(t, 3, r.EffectiveCount())
}

func TestEffectiveCountNeverNegative(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(1)
	r.RecordResolved("a")
	r.RecordResolved("b")
	r.RecordResolved("c")
	assert.Equal(t, 0, r.EffectiveCount())
}

func TestRecordResolvedIdempotent(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(5)
	r.RecordResolved("a")
	r.RecordResolved("a")
	r.RecordResolved("a")
	assert.Equal(t, 4, r.EffectiveCount())
}

func TestRecordUnresolvedRoundTrip(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(5)
	r.RecordResolved("a")
	r.RecordUnresolved("a")
	assert.Equal(t, 5, r.EffectiveCount())

	// Unresolving an id that was never resolved changes nothing.
	r.RecordUnresolved("zzz")
	assert.Equal(t, 5, r.EffectiveCount())
}

func TestFreshPollAbsorbsResolutions(t *testing.T) {
	// User resolves 2 of 5; server's next poll already reflects them. The
	// resolved set must be cleared by the prune pass, not double-subtracted.
	r := NewReconciler()
	r.RecordFetchedCount(5)
	r.RecordResolved("a")
	r.RecordResolved("b")
	assert.Equal(t, 3, r.EffectiveCount())

	r.RecordFetchedCount(3)
	r.PruneTo(map[string]struct{}{"c": {}, "d": {}, "e": {}})
	assert.Equal(t, 3, r.EffectiveCount())
}

func TestPruneToDropsVanishedIDs(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(10)
	r.RecordResolved("a")
	r.RecordResolved("b")
	r.RecordResolved("c")

	r.PruneTo(map[string]struct{}{"b": {}})
	assert.Equal(t, 9, r.EffectiveCount(), "only ids still present upstream keep subtracting")

	ids := r.ResolvedIDs()
	assert.Len(t, ids, 1)
	assert.Contains(t, ids, "b")
}

func TestDisplayListUnreviewedHidesResolved(t *testing.T) {
	r := NewReconciler()
	r.RecordResolved("a")

	events := []buffer.Event{{EventID: "a"}, {EventID: "b"}}
	got := r.DisplayList(events, FilterUnreviewed)
	assert.Len(t, got, 1)
	assert.Equal(t, "b", got[0].EventID)
}

func TestPrefixedIDResolvesBareListing(t *testing.T) {
	// Notification actions carry the candidate-prefixed id while the buffer
	// listing reports the bare event id. Both forms must land on one key.
	r := NewReconciler()
	r.RecordFetchedCount(2)
	r.RecordResolved("ce_1772256011_69405f11")

	events := []buffer.Event{{EventID: "1772256011_69405f11"}, {EventID: "other"}}
	got := r.DisplayList(events, FilterUnreviewed)
	assert.Len(t, got, 1)
	assert.Equal(t, "other", got[0].EventID)
	assert.Equal(t, 1, r.EffectiveCount())
}

func TestPruneToKeepsPrefixRecordedResolution(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(3)
	r.RecordResolved("ce_abc")

	r.PruneTo(map[string]struct{}{"abc": {}, "def": {}})
	assert.Equal(t, 2, r.EffectiveCount(), "bare-id listing must not drop a prefix-recorded resolution")
}

func TestRecordUnresolvedAcrossIDForms(t *testing.T) {
	r := NewReconciler()
	r.RecordFetchedCount(4)
	r.RecordResolved("abc")
	assert.Equal(t, 3, r.EffectiveCount())

	r.RecordUnresolved("ce_abc")
	assert.Equal(t, 4, r.EffectiveCount())
}

func TestDisplayListOtherModesUntouched(t *testing.T) {
	r := NewReconciler()
	r.RecordResolved("a")

	events := []buffer.Event{{EventID: "a"}, {EventID: "b"}}
	assert.Len(t, r.DisplayList(events, FilterAll), 2)
	assert.Len(t, r.DisplayList(events, FilterReviewed), 2)
}
