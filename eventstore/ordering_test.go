package eventstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
)

func buildOrderedFixtures(t *testing.T) eventstore.StorableEvents {
	t.Helper()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base, "")
	first.InsertionID = 1

	// Same timestamp, no sequence number: sorts before any sequenced event.
	second := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base.Add(time.Second), "")
	second.InsertionID = 5

	third := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base.Add(time.Second), "01AAAA")
	third.InsertionID = 3

	fourth := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base.Add(time.Second), "01BBBB")
	fourth.InsertionID = 2

	// Same timestamp and sequence number: insertion ID breaks the tie.
	fifth := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base.Add(time.Second), "01BBBB")
	fifth.InsertionID = 4

	sixth := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", base.Add(2*time.Second), "01AAAA")
	sixth.InsertionID = 6

	return eventstore.StorableEvents{first, second, third, fourth, fifth, sixth}
}

func Test_SortInTotalOrder_Orders_By_OccurredAt_Then_SequenceNumber_NullsFirst_Then_InsertionID(t *testing.T) {
	// arrange
	ordered := buildOrderedFixtures(t)

	shuffled := eventstore.StorableEvents{ordered[3], ordered[5], ordered[0], ordered[4], ordered[2], ordered[1]}

	// act
	eventstore.SortInTotalOrder(shuffled)

	// assert
	assert.Equal(t, ordered, shuffled, "sorting must reproduce the total order")
}

func Test_SortInTotalOrder_Is_Deterministic_For_Any_Input_Order(t *testing.T) {
	// arrange
	ordered := buildOrderedFixtures(t)

	permutations := []eventstore.StorableEvents{
		{ordered[5], ordered[4], ordered[3], ordered[2], ordered[1], ordered[0]},
		{ordered[2], ordered[0], ordered[5], ordered[1], ordered[4], ordered[3]},
		{ordered[1], ordered[3], ordered[0], ordered[5], ordered[2], ordered[4]},
	}

	for _, permutation := range permutations {
		// act
		eventstore.SortInTotalOrder(permutation)

		// assert
		assert.Equal(t, ordered, permutation, "every input order must converge to the same total order")
	}
}

func Test_Compare_Treats_Missing_SequenceNumber_As_Lowest(t *testing.T) {
	// arrange
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	unsequenced := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", occurredAt, "")
	sequenced := testutil.FixtureStorableEvent(t, "SomethingHappened", "agg-1", occurredAt, "01AAAA")

	// act + assert
	assert.Less(t, eventstore.Compare(unsequenced, sequenced), 0)
	assert.Greater(t, eventstore.Compare(sequenced, unsequenced), 0)
}

func Test_IsAfter_Is_The_Exact_Complement_Of_IsAtOrBefore(t *testing.T) {
	// arrange
	events := buildOrderedFixtures(t)

	points := []eventstore.Point{
		{OccurredAt: events[0].OccurredAt},
		{OccurredAt: events[2].OccurredAt, SequenceNumber: events[2].SequenceNumber},
		{OccurredAt: events[3].OccurredAt, SequenceNumber: events[3].SequenceNumber},
		{OccurredAt: events[5].OccurredAt.Add(time.Hour), SequenceNumber: "01ZZZZ"},
	}

	for _, point := range points {
		for _, event := range events {
			// act + assert
			assert.NotEqual(t,
				eventstore.IsAtOrBefore(event, point),
				eventstore.IsAfter(event, point),
				"every event must fall on exactly one side of the point")
		}
	}
}

func Test_IsAtOrBefore_Includes_Unsequenced_Events_At_The_Point_Timestamp(t *testing.T) {
	// arrange
	events := buildOrderedFixtures(t)
	point := eventstore.Point{OccurredAt: events[2].OccurredAt, SequenceNumber: events[2].SequenceNumber}

	// act + assert
	assert.True(t, eventstore.IsAtOrBefore(events[1], point),
		"the unsequenced event at the point's timestamp sorts before any sequenced one")
	assert.True(t, eventstore.IsAtOrBefore(events[2], point), "the point's own event is included")
	assert.False(t, eventstore.IsAtOrBefore(events[3], point), "later sequence numbers are excluded")
}

func Test_IsStrictlyBefore_Excludes_The_Points_Own_Events(t *testing.T) {
	// arrange
	events := buildOrderedFixtures(t)
	point := eventstore.Point{OccurredAt: events[2].OccurredAt, SequenceNumber: events[2].SequenceNumber}

	// act + assert
	assert.True(t, eventstore.IsStrictlyBefore(events[0], point))
	assert.True(t, eventstore.IsStrictlyBefore(events[1], point))
	assert.False(t, eventstore.IsStrictlyBefore(events[2], point), "the point's own event is excluded")
	assert.False(t, eventstore.IsStrictlyBefore(events[3], point))
}
