package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestTimeSlotOverlaps(t *testing.T) {
	slot := TimeSlot{Start: ts(10, 0), End: ts(11, 0)}

	tests := []struct {
		name  string
		other TimeSlot
		want  bool
	}{
		{"identical", TimeSlot{Start: ts(10, 0), End: ts(11, 0)}, true},
		{"contained", TimeSlot{Start: ts(10, 15), End: ts(10, 45)}, true},
		{"partial tail", TimeSlot{Start: ts(10, 30), End: ts(11, 30)}, true},
		{"partial head", TimeSlot{Start: ts(9, 30), End: ts(10, 30)}, true},
		{"touching before", TimeSlot{Start: ts(9, 0), End: ts(10, 0)}, false},
		{"touching after", TimeSlot{Start: ts(11, 0), End: ts(12, 0)}, false},
		{"disjoint", TimeSlot{Start: ts(13, 0), End: ts(14, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slot.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(slot))
		})
	}
}

func TestTimeSlotCovers(t *testing.T) {
	slot := TimeSlot{Start: ts(9, 0), End: ts(17, 0)}

	assert.True(t, slot.Covers(ts(9, 0), ts(17, 0)))
	assert.True(t, slot.Covers(ts(10, 0), ts(11, 0)))
	assert.False(t, slot.Covers(ts(8, 30), ts(9, 30)))
	assert.False(t, slot.Covers(ts(16, 30), ts(17, 30)))
}

func TestBookingStatusTerminal(t *testing.T) {
	assert.True(t, BookingStatusCompleted.Terminal())
	assert.True(t, BookingStatusCancelled.Terminal())
	assert.False(t, BookingStatusPendingTechnician.Terminal())
	assert.False(t, BookingStatusPendingCustomer.Terminal())
	assert.False(t, BookingStatusConfirmed.Terminal())
}

func TestAddressComplete(t *testing.T) {
	complete := Address{Line1: "12 Harbour Row", City: "Bristol", PostalCode: "BS1 4ND", Country: "GB"}
	assert.True(t, complete.Complete())

	missing := complete
	missing.PostalCode = ""
	assert.False(t, missing.Complete())
}

func TestDraftExpired(t *testing.T) {
	draft := BookingDraft{ExpiresAt: ts(10, 0)}
	assert.False(t, draft.Expired(ts(10, 0)))
	assert.True(t, draft.Expired(ts(10, 1)))
}
