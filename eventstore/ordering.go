package eventstore

import (
	"slices"
	"strings"
	"time"
)

// Point addresses a single position in the total order of events: the moment an Action
// took effect combined with the Action's ID. It is the cursor used to rewind history to,
// or to replay history from, the exact position of one Action.
type Point struct {
	OccurredAt     time.Time
	SequenceNumber string
}

// Compare orders two events by the store's total order:
// occurred_at ascending, then sequence_number ascending with NULL (empty) first,
// then insertion_id ascending.
//
// It returns a negative number when a sorts before b, a positive number when a sorts
// after b, and 0 when both occupy the same position.
func Compare(a StorableEvent, b StorableEvent) int {
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}

	if c := compareSequenceNumbers(a.SequenceNumber, b.SequenceNumber); c != 0 {
		return c
	}

	switch {
	case a.InsertionID < b.InsertionID:
		return -1
	case a.InsertionID > b.InsertionID:
		return 1
	default:
		return 0
	}
}

// SortInTotalOrder sorts events in place by the store's total order.
// The sort is stable so that not yet persisted events (insertion ID zero)
// keep their relative recording order.
func SortInTotalOrder(events []StorableEvent) {
	slices.SortStableFunc(events, Compare)
}

// compareSequenceNumbers treats the empty sequence number as NULL which sorts
// before any real value. Action IDs are monotonic ULIDs, so plain string
// comparison yields creation order.
func compareSequenceNumbers(a string, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// IsAtOrBefore reports whether the event's position is at or before the given point.
//
// At the exact timestamp of the point, events without a sequence number sort before
// any sequenced event and are included; sequenced events are included up to and
// including the point's own sequence number.
func IsAtOrBefore(event StorableEvent, point Point) bool {
	if c := event.OccurredAt.Compare(point.OccurredAt); c != 0 {
		return c < 0
	}

	return compareSequenceNumbers(event.SequenceNumber, point.SequenceNumber) <= 0
}

// IsStrictlyBefore reports whether the event's position is strictly before the given point.
func IsStrictlyBefore(event StorableEvent, point Point) bool {
	if c := event.OccurredAt.Compare(point.OccurredAt); c != 0 {
		return c < 0
	}

	return compareSequenceNumbers(event.SequenceNumber, point.SequenceNumber) < 0
}

// IsAfter reports whether the event's position is strictly after the given point.
func IsAfter(event StorableEvent, point Point) bool {
	return !IsAtOrBefore(event, point)
}
