package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
)

// ActionAggregateType is the aggregate type identifier of actions.
const ActionAggregateType = "action"

var (
	// ErrActionDeleted is returned when a command targets a deleted action.
	ErrActionDeleted = errors.New("action has been deleted")

	// ErrWrongActionKind is returned when an edit does not match the action's kind.
	ErrWrongActionKind = errors.New("edit does not match the action's kind")

	// ErrZeroBlendTotal is returned when the contributing blend volumes sum to zero.
	ErrZeroBlendTotal = errors.New("total blended volume cannot be zero")
)

// Action is the bookkeeping aggregate of one cellar operation. Its ID is the
// sequence number of every wine-lot event the operation produced, which is what
// lets the replay engine find and correct those events later.
type Action struct {
	root               *aggregate.Root
	effectiveAt        time.Time
	recordedAt         time.Time
	updatedAt          *time.Time
	deletedAt          *time.Time
	actionType         string
	details            core.ActionDetails
	involvedWineLotIDs []string
	revisionNumber     uint
}

type actionState struct {
	EffectiveAt        time.Time          `json:"effective_at"`
	RecordedAt         time.Time          `json:"recorded_at"`
	UpdatedAt          *time.Time         `json:"updated_at,omitempty"`
	DeletedAt          *time.Time         `json:"deleted_at,omitempty"`
	ActionType         string             `json:"action_type"`
	Details            core.ActionDetails `json:"details"`
	InvolvedWineLotIDs []string           `json:"involved_wine_lot_ids"`
	RevisionNumber     uint               `json:"revision_number"`
}

// NewAction creates an empty action bound to the given store, with all event
// handlers and decoders registered.
func NewAction(aggregateID string, store eventstore.Store) *Action {
	action := &Action{}
	action.root = aggregate.NewRoot(action, ActionAggregateType, aggregateID, store)
	action.register()

	return action
}

// RecordReceiveVolume records a volume receipt into a wine lot. A zero
// effectiveAt means the action takes effect now.
func RecordReceiveVolume(
	ctx context.Context,
	store eventstore.Store,
	wineLotID string,
	volume decimal.Decimal,
	effectiveAt time.Time,
) (*Action, error) {

	data := core.BuildReceiveVolumeData(wineLotID, volume)

	return record(ctx, store, core.ActionDetails{ReceiveVolume: &data}, effectiveAt)
}

// RecordRemeasure records a fresh volume measurement of a wine lot.
func RecordRemeasure(
	ctx context.Context,
	store eventstore.Store,
	wineLotID string,
	volume decimal.Decimal,
	effectiveAt time.Time,
) (*Action, error) {

	data := core.BuildMeasureVolumeData(wineLotID, volume)

	return record(ctx, store, core.ActionDetails{Remeasure: &data}, effectiveAt)
}

// RecordBlend records a blend of several source lots into a receiving lot.
func RecordBlend(
	ctx context.Context,
	store eventstore.Store,
	blendVolumes map[string]decimal.Decimal,
	receivingWineLotID string,
	blendedVolume decimal.Decimal,
	effectiveAt time.Time,
) (*Action, error) {

	if err := validateBlend(blendVolumes, blendedVolume); err != nil {
		return nil, err
	}

	data := core.BuildBlendData(blendVolumes, receivingWineLotID, blendedVolume)

	return record(ctx, store, core.ActionDetails{Blend: &data}, effectiveAt)
}

// RecordBottle records a bottling run drawn from a wine lot.
func RecordBottle(
	ctx context.Context,
	store eventstore.Store,
	wineLotID string,
	volumeBottled decimal.Decimal,
	bottles int,
	effectiveAt time.Time,
) (*Action, error) {

	data := core.BuildBottleData(wineLotID, volumeBottled, bottles)

	return record(ctx, store, core.ActionDetails{Bottle: &data}, effectiveAt)
}

func record(ctx context.Context, store eventstore.Store, details core.ActionDetails, effectiveAt time.Time) (*Action, error) {
	now := time.Now().UTC()
	if effectiveAt.IsZero() {
		effectiveAt = now
	}

	event := core.BuildActionRecorded(NewActionID(), effectiveAt, now, details)

	action := NewAction(event.AggregateID, store)
	if err := action.root.Apply(ctx, event); err != nil {
		return nil, err
	}

	return action, nil
}

// LoadAction reconstructs an action from its stored state row.
// Returns eventstore.ErrActionNotFound if no action with the ID was ever persisted.
func LoadAction(ctx context.Context, store eventstore.Store, aggregateID string) (*Action, error) {
	snapshot, err := store.LoadAggregate(ctx, aggregateID)
	if err != nil {
		if errors.Is(err, eventstore.ErrAggregateNotFound) {
			return nil, fmt.Errorf("%w: %s", eventstore.ErrActionNotFound, aggregateID)
		}

		return nil, err
	}

	action := NewAction(aggregateID, store)

	var state actionState
	if err := jsonCodec.Unmarshal(snapshot.StateJSON, &state); err != nil {
		return nil, err
	}

	action.effectiveAt = state.EffectiveAt
	action.recordedAt = state.RecordedAt
	action.updatedAt = state.UpdatedAt
	action.deletedAt = state.DeletedAt
	action.actionType = state.ActionType
	action.details = state.Details
	action.involvedWineLotIDs = state.InvolvedWineLotIDs
	action.revisionNumber = state.RevisionNumber
	action.root.SetVersion(snapshot.Version)

	return action, nil
}

// ID returns the action's aggregate ID, which doubles as the sequence number of
// every wine-lot event it produced.
func (a *Action) ID() string {
	return a.root.AggregateID()
}

// EffectiveAt returns when the action takes effect in lot history.
func (a *Action) EffectiveAt() time.Time {
	return a.effectiveAt
}

// RecordedAt returns when the action was entered.
func (a *Action) RecordedAt() time.Time {
	return a.recordedAt
}

// ActionType returns the action's kind discriminator.
func (a *Action) ActionType() string {
	return a.actionType
}

// Details returns the action's typed details.
func (a *Action) Details() core.ActionDetails {
	return a.details
}

// InvolvedWineLotIDs returns the IDs of all wine lots the action touches.
func (a *Action) InvolvedWineLotIDs() []string {
	return a.involvedWineLotIDs
}

// RevisionNumber returns how often the action has been edited.
func (a *Action) RevisionNumber() uint {
	return a.revisionNumber
}

// Deleted reports whether the action has been deleted.
func (a *Action) Deleted() bool {
	return a.deletedAt != nil
}

// Point returns the position of the action in the total order of lot history:
// its effective time and its ID as the sequence number.
func (a *Action) Point() eventstore.Point {
	return eventstore.Point{OccurredAt: a.effectiveAt, SequenceNumber: a.ID()}
}

// EditReceiveVolume corrects a recorded volume receipt.
func (a *Action) EditReceiveVolume(ctx context.Context, wineLotID string, volume decimal.Decimal) error {
	if err := a.editable(core.ActionTypeReceiveVolume); err != nil {
		return err
	}

	current := a.details.ReceiveVolume
	data := core.BuildReceiveVolumeEditData(
		core.ChangeOf(current.WineLotID, wineLotID),
		core.ChangeOf(current.Volume, volume),
	)

	return a.applyEdit(ctx, core.ActionEditDetails{ReceiveVolume: &data})
}

// EditRemeasure corrects a recorded volume measurement.
func (a *Action) EditRemeasure(ctx context.Context, wineLotID string, volume decimal.Decimal) error {
	if err := a.editable(core.ActionTypeRemeasure); err != nil {
		return err
	}

	current := a.details.Remeasure
	data := core.BuildMeasureVolumeEditData(
		core.ChangeOf(current.WineLotID, wineLotID),
		core.ChangeOf(current.Volume, volume),
	)

	return a.applyEdit(ctx, core.ActionEditDetails{Remeasure: &data})
}

// EditBlend corrects a recorded blend.
func (a *Action) EditBlend(
	ctx context.Context,
	blendVolumes map[string]decimal.Decimal,
	receivingWineLotID string,
	blendedVolume decimal.Decimal,
) error {

	if err := a.editable(core.ActionTypeBlend); err != nil {
		return err
	}

	if err := validateBlend(blendVolumes, blendedVolume); err != nil {
		return err
	}

	current := a.details.Blend
	data := core.BuildBlendEditData(
		core.ChangeOf(current.BlendVolumes, blendVolumes),
		core.ChangeOf(current.ReceivingWineLotID, receivingWineLotID),
		core.ChangeOf(current.BlendedVolume, blendedVolume),
	)

	return a.applyEdit(ctx, core.ActionEditDetails{Blend: &data})
}

// EditBottle corrects a recorded bottling run.
func (a *Action) EditBottle(ctx context.Context, wineLotID string, volumeBottled decimal.Decimal, bottles int) error {
	if err := a.editable(core.ActionTypeBottle); err != nil {
		return err
	}

	current := a.details.Bottle
	data := core.BuildBottleEditData(
		core.ChangeOf(current.WineLotID, wineLotID),
		core.ChangeOf(current.VolumeBottled, volumeBottled),
		core.ChangeOf(current.Bottles, bottles),
	)

	return a.applyEdit(ctx, core.ActionEditDetails{Bottle: &data})
}

// Destroy marks the action as deleted.
func (a *Action) Destroy(ctx context.Context) error {
	if a.deletedAt != nil {
		return fmt.Errorf("cannot delete again: %w", ErrActionDeleted)
	}

	event := core.BuildActionDeleted(a.ID(), time.Now().UTC())

	return a.root.Apply(ctx, event)
}

// Root returns the aggregate's event-sourcing root.
func (a *Action) Root() *aggregate.Root {
	return a.root
}

// StateJSON serializes the action's current state for the aggregate table.
func (a *Action) StateJSON() (json.RawMessage, error) {
	return marshalState(actionState{
		EffectiveAt:        a.effectiveAt,
		RecordedAt:         a.recordedAt,
		UpdatedAt:          a.updatedAt,
		DeletedAt:          a.deletedAt,
		ActionType:         a.actionType,
		Details:            a.details,
		InvolvedWineLotIDs: a.involvedWineLotIDs,
		RevisionNumber:     a.revisionNumber,
	})
}

func (a *Action) editable(actionType string) error {
	if a.actionType != actionType {
		return fmt.Errorf("%w: action is %s", ErrWrongActionKind, a.actionType)
	}

	if a.deletedAt != nil {
		return fmt.Errorf("cannot edit: %w", ErrActionDeleted)
	}

	return nil
}

func (a *Action) applyEdit(ctx context.Context, details core.ActionEditDetails) error {
	event := core.BuildActionEdited(a.ID(), time.Now().UTC(), details)

	return a.root.Apply(ctx, event)
}

func (a *Action) register() {
	a.root.RegisterHandler(core.ActionRecordedEventType, handlerFor(a.applyRecorded))
	a.root.RegisterHandler(core.ActionEditedEventType, handlerFor(a.applyEdited))
	a.root.RegisterHandler(core.ActionDeletedEventType, handlerFor(a.applyDeleted))

	a.root.RegisterDecoder(core.ActionRecordedEventType, decoderFor[core.ActionRecorded]())
	a.root.RegisterDecoder(core.ActionEditedEventType, decoderFor[core.ActionEdited]())
	a.root.RegisterDecoder(core.ActionDeletedEventType, decoderFor[core.ActionDeleted]())
}

func (a *Action) applyRecorded(event core.ActionRecorded) error {
	a.effectiveAt = event.EffectiveAt
	a.recordedAt = event.RecordedAt
	a.deletedAt = nil
	a.revisionNumber = 0
	a.actionType = event.Details.ActionType()
	a.details = event.Details
	a.involvedWineLotIDs = event.Details.InvolvedWineLotIDs()

	return nil
}

func (a *Action) applyEdited(event core.ActionEdited) error {
	a.revisionNumber++
	editedAt := event.EditedAt
	a.updatedAt = &editedAt
	a.details = event.Details.After()
	a.involvedWineLotIDs = a.details.InvolvedWineLotIDs()

	return nil
}

func (a *Action) applyDeleted(event core.ActionDeleted) error {
	deletedAt := event.DeletedAt
	a.deletedAt = &deletedAt

	return nil
}

func validateBlend(blendVolumes map[string]decimal.Decimal, blendedVolume decimal.Decimal) error {
	if !blendedVolume.IsPositive() {
		return ErrNonPositiveVolume
	}

	total := decimal.Zero
	for _, volume := range blendVolumes {
		total = total.Add(volume)
	}

	if total.IsZero() {
		return ErrZeroBlendTotal
	}

	return nil
}
