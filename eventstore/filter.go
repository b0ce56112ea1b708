package eventstore

import (
	"slices"
	"time"
)

type FilterEventTypeString = string
type FilterAggregateIDString = string
type FilterSequenceNumberString = string

/***** Filter *****/

// Filter is a generic event filter to be used by DB type-specific eventstore implementations
// to build queries for the specific query language, e.g.: Postgres, in-memory, ...
//
// It is designed to only allow "useful" filter combinations for mutable event-sourced workflows:
//
//   - empty filter (all live events in total order)
//   - (aggregateID OR aggregateID...)
//   - (eventType OR eventType...)
//   - ((aggregateID OR ...) AND (eventType OR ...))
//   - (sequenceNumber OR sequenceNumber...) -> all events produced by the given Action(s)
//   - any of the above AND a time or point window (until / at-or-before / before / after)
//   - any of the above including tombstoned events (audit view)
type Filter struct {
	aggregateIDs      []FilterAggregateIDString
	eventTypes        []FilterEventTypeString
	sequenceNumbers   []FilterSequenceNumberString
	occurredUntil     time.Time
	atOrBeforePoint   *Point
	beforePoint       *Point
	afterPoint        *Point
	includeTombstoned bool
}

func (f Filter) AggregateIDs() []FilterAggregateIDString {
	return f.aggregateIDs
}

func (f Filter) EventTypes() []FilterEventTypeString {
	return f.eventTypes
}

func (f Filter) SequenceNumbers() []FilterSequenceNumberString {
	return f.sequenceNumbers
}

// OccurredUntil returns the inclusive upper bound on occurred_at, zero if unbounded.
func (f Filter) OccurredUntil() time.Time {
	return f.occurredUntil
}

// AtOrBeforePoint returns the inclusive point cutoff, nil if unset.
// At the point's exact timestamp, events without a sequence number and events with a
// sequence number up to and including the point's are matched.
func (f Filter) AtOrBeforePoint() *Point {
	return f.atOrBeforePoint
}

// BeforePoint returns the exclusive point cutoff, nil if unset.
func (f Filter) BeforePoint() *Point {
	return f.beforePoint
}

// AfterPoint returns the exclusive lower point bound, nil if unset.
// It matches exactly the events NOT matched by an AtOrBeforePoint cutoff with the same point.
func (f Filter) AfterPoint() *Point {
	return f.afterPoint
}

// IncludeTombstoned reports whether tombstoned events are part of the result (audit view).
func (f Filter) IncludeTombstoned() bool {
	return f.includeTombstoned
}

/***** FilterBuilder *****/

type FilterBuilder interface {
	// Matching starts defining match criteria.
	Matching() EmptyFilterBuilder

	// MatchingAnyEvent directly creates an empty Filter matching all live events.
	MatchingAnyEvent() Filter
}

type EmptyFilterBuilder interface {
	// AnyAggregateIDOf adds one or multiple AggregateIDs to the Filter.
	//
	// It sanitizes the input:
	//	- removing empty AggregateIDs ("")
	//	- sorting the AggregateIDs
	//	- removing duplicate AggregateIDs
	AnyAggregateIDOf(aggregateID FilterAggregateIDString, aggregateIDs ...FilterAggregateIDString) FilterBuilderLackingEventTypes

	// AnyEventTypeOf adds one or multiple EventTypes to the Filter.
	//
	// It sanitizes the input:
	//	- removing empty EventTypes ("")
	//	- sorting the EventTypes
	//	- removing duplicate EventTypes
	AnyEventTypeOf(eventType FilterEventTypeString, eventTypes ...FilterEventTypeString) FilterBuilderLackingAggregateIDs

	// AnySequenceNumberOf adds one or multiple SequenceNumbers to the Filter,
	// matching all events produced by the given Action(s).
	//
	// It sanitizes the input:
	//	- removing empty SequenceNumbers ("")
	//	- sorting the SequenceNumbers
	//	- removing duplicate SequenceNumbers
	AnySequenceNumberOf(sequenceNumber FilterSequenceNumberString, sequenceNumbers ...FilterSequenceNumberString) WindowedFilterBuilder
}

type FilterBuilderLackingEventTypes interface {
	WindowedFilterBuilder

	// AndAnyEventTypeOf adds one or multiple EventTypes to the Filter.
	//
	// It sanitizes the input:
	//	- removing empty EventTypes ("")
	//	- sorting the EventTypes
	//	- removing duplicate EventTypes
	AndAnyEventTypeOf(eventType FilterEventTypeString, eventTypes ...FilterEventTypeString) WindowedFilterBuilder
}

type FilterBuilderLackingAggregateIDs interface {
	WindowedFilterBuilder

	// AndAnyAggregateIDOf adds one or multiple AggregateIDs to the Filter.
	//
	// It sanitizes the input:
	//	- removing empty AggregateIDs ("")
	//	- sorting the AggregateIDs
	//	- removing duplicate AggregateIDs
	AndAnyAggregateIDOf(aggregateID FilterAggregateIDString, aggregateIDs ...FilterAggregateIDString) WindowedFilterBuilder
}

type WindowedFilterBuilder interface {
	// AndOccurredUntil bounds the Filter to events with occurred_at <= until (inclusive).
	AndOccurredUntil(until time.Time) WindowedFilterBuilder

	// AndOccurredAtOrBeforePoint bounds the Filter to events at or before the given point
	// in total order (inclusive). This is the rewind prefix of an Action.
	AndOccurredAtOrBeforePoint(point Point) WindowedFilterBuilder

	// AndOccurredBeforePoint bounds the Filter to events strictly before the given point
	// in total order.
	AndOccurredBeforePoint(point Point) WindowedFilterBuilder

	// AndOccurredAfterPoint bounds the Filter to events strictly after the given point
	// in total order. This is the downstream suffix of an Action.
	AndOccurredAfterPoint(point Point) WindowedFilterBuilder

	// IncludingTombstoned makes the Filter match tombstoned events as well (audit view).
	IncludingTombstoned() WindowedFilterBuilder

	// Finalize returns the Filter.
	Finalize() Filter
}

// filterBuilder implements all the interfaces of FilterBuilder.
type filterBuilder struct {
	filter Filter
}

// BuildEventFilter creates a FilterBuilder which must eventually be finalized with Finalize() or MatchingAnyEvent().
func BuildEventFilter() FilterBuilder {
	return filterBuilder{}
}

// Matching starts defining match criteria.
func (fb filterBuilder) Matching() EmptyFilterBuilder {
	return fb
}

// MatchingAnyEvent directly creates an empty filter matching all live events.
func (fb filterBuilder) MatchingAnyEvent() Filter {
	return fb.filter
}

// AnyAggregateIDOf adds one or multiple AggregateIDs to the Filter.
func (fb filterBuilder) AnyAggregateIDOf(
	aggregateID FilterAggregateIDString,
	aggregateIDs ...FilterAggregateIDString,
) FilterBuilderLackingEventTypes {

	fb.filter.aggregateIDs = append(fb.filter.aggregateIDs, sanitizeStrings(aggregateID, aggregateIDs...)...)

	return fb
}

// AndAnyAggregateIDOf adds one or multiple AggregateIDs to the Filter.
func (fb filterBuilder) AndAnyAggregateIDOf(
	aggregateID FilterAggregateIDString,
	aggregateIDs ...FilterAggregateIDString,
) WindowedFilterBuilder {

	fb.filter.aggregateIDs = append(fb.filter.aggregateIDs, sanitizeStrings(aggregateID, aggregateIDs...)...)

	return fb
}

// AnyEventTypeOf adds one or multiple EventTypes to the Filter.
func (fb filterBuilder) AnyEventTypeOf(
	eventType FilterEventTypeString,
	eventTypes ...FilterEventTypeString,
) FilterBuilderLackingAggregateIDs {

	fb.filter.eventTypes = append(fb.filter.eventTypes, sanitizeStrings(eventType, eventTypes...)...)

	return fb
}

// AndAnyEventTypeOf adds one or multiple EventTypes to the Filter.
func (fb filterBuilder) AndAnyEventTypeOf(
	eventType FilterEventTypeString,
	eventTypes ...FilterEventTypeString,
) WindowedFilterBuilder {

	fb.filter.eventTypes = append(fb.filter.eventTypes, sanitizeStrings(eventType, eventTypes...)...)

	return fb
}

// AnySequenceNumberOf adds one or multiple SequenceNumbers to the Filter.
func (fb filterBuilder) AnySequenceNumberOf(
	sequenceNumber FilterSequenceNumberString,
	sequenceNumbers ...FilterSequenceNumberString,
) WindowedFilterBuilder {

	fb.filter.sequenceNumbers = append(fb.filter.sequenceNumbers, sanitizeStrings(sequenceNumber, sequenceNumbers...)...)

	return fb
}

// AndOccurredUntil bounds the Filter to events with occurred_at <= until (inclusive).
func (fb filterBuilder) AndOccurredUntil(until time.Time) WindowedFilterBuilder {
	fb.filter.occurredUntil = until

	return fb
}

// AndOccurredAtOrBeforePoint bounds the Filter to events at or before the given point in total order.
func (fb filterBuilder) AndOccurredAtOrBeforePoint(point Point) WindowedFilterBuilder {
	fb.filter.atOrBeforePoint = &point

	return fb
}

// AndOccurredBeforePoint bounds the Filter to events strictly before the given point in total order.
func (fb filterBuilder) AndOccurredBeforePoint(point Point) WindowedFilterBuilder {
	fb.filter.beforePoint = &point

	return fb
}

// AndOccurredAfterPoint bounds the Filter to events strictly after the given point in total order.
func (fb filterBuilder) AndOccurredAfterPoint(point Point) WindowedFilterBuilder {
	fb.filter.afterPoint = &point

	return fb
}

// IncludingTombstoned makes the Filter match tombstoned events as well (audit view).
func (fb filterBuilder) IncludingTombstoned() WindowedFilterBuilder {
	fb.filter.includeTombstoned = true

	return fb
}

// Finalize returns the Filter.
func (fb filterBuilder) Finalize() Filter {
	return fb.filter
}

func sanitizeStrings(first string, rest ...string) []string {
	all := append([]string{first}, rest...)
	all = slices.DeleteFunc(all, func(s string) bool { return s == "" })
	slices.Sort(all)
	all = slices.Compact(all)
	all = slices.Clip(all)

	return all
}
