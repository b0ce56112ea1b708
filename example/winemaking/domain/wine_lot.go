package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
)

// WineLotAggregateType is the aggregate type identifier of wine lots.
const WineLotAggregateType = "wine_lot"

// Lot codes are at least 2 uppercase alphanumeric characters, with optional
// hyphens or underscores in between.
var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,48}[A-Z0-9]$`)

var (
	// ErrInvalidLotCode is returned when a lot code does not match the required format.
	ErrInvalidLotCode = errors.New("lot code must be 2 to 50 uppercase alphanumeric characters, hyphens, or underscores")

	// ErrWineLotDeleted is returned when a command targets a deleted wine lot.
	ErrWineLotDeleted = errors.New("wine lot has been deleted")

	// ErrNonPositiveVolume is returned when a volume that must be positive is not.
	ErrNonPositiveVolume = errors.New("volume must be greater than zero")

	// ErrNegativeVolume is returned when a volume that must be non-negative is not.
	ErrNegativeVolume = errors.New("volume must be non-negative")

	// ErrVolumeExceedsCurrent is returned when moving or bottling would take more
	// volume out of a lot than it holds. It fires on the write path and again on
	// every downstream reapply, so corrections that overdraw a lot are rejected.
	ErrVolumeExceedsCurrent = errors.New("volume cannot exceed the lot's current volume")
)

// WineLot is a quantity of wine tracked through its cellar life: received,
// moved, blended, remeasured, bottled. State is folded from events; the volume
// is whatever the event history says it is.
type WineLot struct {
	root       *aggregate.Root
	code       string
	volume     decimal.Decimal
	components []core.ComponentAmount
	deletedAt  *time.Time
}

type wineLotState struct {
	Code       string                 `json:"code"`
	Volume     decimal.Decimal        `json:"volume"`
	Components []core.ComponentAmount `json:"components"`
	DeletedAt  *time.Time             `json:"deleted_at,omitempty"`
}

// NewWineLot creates an empty wine lot bound to the given store, with all event
// handlers, validators, and decoders registered.
func NewWineLot(aggregateID string, store eventstore.Store) *WineLot {
	lot := &WineLot{volume: decimal.Zero}
	lot.root = aggregate.NewRoot(lot, WineLotAggregateType, aggregateID, store)
	lot.register()

	return lot
}

// CreateWineLot creates a new wine lot with the given code and initial
// composition. The creation event is pinned to the epoch so it stays in front of
// any backdated action.
func CreateWineLot(ctx context.Context, store eventstore.Store, code string, composition core.Composition) (*WineLot, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	if err := composition.Validate(); err != nil {
		return nil, err
	}

	lot := NewWineLot(uuid.NewString(), store)

	event := core.BuildWineLotCreated(lot.ID(), code, composition.Amounts())
	if err := lot.root.Apply(ctx, event); err != nil {
		return nil, err
	}

	return lot, nil
}

// LoadWineLot reconstructs a wine lot from its stored state row.
// Returns eventstore.ErrAggregateNotFound if the lot has never been persisted.
func LoadWineLot(ctx context.Context, store eventstore.Store, aggregateID string) (*WineLot, error) {
	snapshot, err := store.LoadAggregate(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	lot := NewWineLot(aggregateID, store)

	var state wineLotState
	if err := jsonCodec.Unmarshal(snapshot.StateJSON, &state); err != nil {
		return nil, err
	}

	lot.code = state.Code
	lot.volume = state.Volume
	lot.components = state.Components
	lot.deletedAt = state.DeletedAt
	lot.root.SetVersion(snapshot.Version)

	return lot, nil
}

// ID returns the wine lot's aggregate ID.
func (l *WineLot) ID() string {
	return l.root.AggregateID()
}

// Code returns the wine lot's code.
func (l *WineLot) Code() string {
	return l.code
}

// Volume returns the wine lot's current volume.
func (l *WineLot) Volume() decimal.Decimal {
	return l.volume
}

// Components returns the wine lot's initial composition as component amounts.
func (l *WineLot) Components() []core.ComponentAmount {
	return l.components
}

// Deleted reports whether the wine lot has been deleted.
func (l *WineLot) Deleted() bool {
	return l.deletedAt != nil
}

// UpdateCode changes the wine lot's code.
func (l *WineLot) UpdateCode(ctx context.Context, code string) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot update: %w", ErrWineLotDeleted)
	}

	if err := validateCode(code); err != nil {
		return err
	}

	event := core.BuildWineLotUpdated(l.ID(), core.ChangeOf(l.code, code), time.Now().UTC())

	return l.root.Apply(ctx, event)
}

// Destroy soft-deletes the wine lot. The code is suffixed with a unique marker,
// freeing it for reuse; the marker is generated here and carried in the event so
// refolding the history always yields the same code.
func (l *WineLot) Destroy(ctx context.Context) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot delete again: %w", ErrWineLotDeleted)
	}

	deletedCode := l.code + "!" + strings.ReplaceAll(uuid.NewString(), "-", "")
	event := core.BuildWineLotDeleted(l.ID(), deletedCode, time.Now().UTC())

	return l.root.Apply(ctx, event)
}

// ReceiveVolume adds volume arriving from outside the cellar.
func (l *WineLot) ReceiveVolume(ctx context.Context, actionID string, effectiveAt time.Time, volume decimal.Decimal) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot adjust volume: %w", ErrWineLotDeleted)
	}

	event := core.BuildVolumeReceived(l.ID(), actionID, volume, effectiveAt)

	return l.root.Apply(ctx, event)
}

// MoveVolume subtracts volume leaving towards another lot.
func (l *WineLot) MoveVolume(ctx context.Context, actionID string, effectiveAt time.Time, volume decimal.Decimal, toWineLotID string) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot move volume: %w", ErrWineLotDeleted)
	}

	if volume.IsNegative() {
		return ErrNegativeVolume
	}

	event := core.BuildVolumeMoved(l.ID(), actionID, volume, toWineLotID, effectiveAt)

	return l.root.Apply(ctx, event)
}

// BlendInVolume adds volume arriving from other lots. Volumes maps each
// contributing lot to what it gave up; volumeReceived is what actually arrived.
func (l *WineLot) BlendInVolume(
	ctx context.Context,
	actionID string,
	effectiveAt time.Time,
	volumeReceived decimal.Decimal,
	volumes map[string]decimal.Decimal,
) error {

	if l.deletedAt != nil {
		return fmt.Errorf("cannot blend: %w", ErrWineLotDeleted)
	}

	if !volumeReceived.IsPositive() {
		return ErrNonPositiveVolume
	}

	event := core.BuildVolumeBlended(l.ID(), actionID, volumes, volumeReceived, effectiveAt)

	return l.root.Apply(ctx, event)
}

// Remeasure replaces the tracked volume with a fresh measurement.
func (l *WineLot) Remeasure(ctx context.Context, actionID string, effectiveAt time.Time, volume decimal.Decimal) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot remeasure: %w", ErrWineLotDeleted)
	}

	if volume.IsNegative() {
		return ErrNegativeVolume
	}

	event := core.BuildVolumeRemeasured(l.ID(), actionID, volume, effectiveAt)

	return l.root.Apply(ctx, event)
}

// Bottle subtracts volume leaving into bottles.
func (l *WineLot) Bottle(ctx context.Context, actionID string, effectiveAt time.Time, volume decimal.Decimal) error {
	if l.deletedAt != nil {
		return fmt.Errorf("cannot bottle: %w", ErrWineLotDeleted)
	}

	if !volume.IsPositive() {
		return ErrNonPositiveVolume
	}

	event := core.BuildVolumeBottled(l.ID(), actionID, volume, effectiveAt)

	return l.root.Apply(ctx, event)
}

// Root returns the aggregate's event-sourcing root.
func (l *WineLot) Root() *aggregate.Root {
	return l.root
}

// Identity returns a blank copy with the same ID, version, and store, ready to
// be refolded from events.
func (l *WineLot) Identity() aggregate.Editable {
	blank := NewWineLot(l.ID(), l.root.Store())
	blank.root.SetVersion(l.root.Version())

	return blank
}

// StateJSON serializes the wine lot's current state for the aggregate table.
func (l *WineLot) StateJSON() (json.RawMessage, error) {
	return marshalState(wineLotState{
		Code:       l.code,
		Volume:     l.volume,
		Components: l.components,
		DeletedAt:  l.deletedAt,
	})
}

func (l *WineLot) register() {
	l.root.RegisterHandler(core.WineLotCreatedEventType, handlerFor(l.applyCreated))
	l.root.RegisterHandler(core.WineLotUpdatedEventType, handlerFor(l.applyUpdated))
	l.root.RegisterHandler(core.WineLotDeletedEventType, handlerFor(l.applyDeleted))
	l.root.RegisterHandler(core.VolumeReceivedEventType, handlerFor(l.applyVolumeReceived))
	l.root.RegisterHandler(core.VolumeRemeasuredEventType, handlerFor(l.applyVolumeRemeasured))
	l.root.RegisterHandler(core.VolumeBottledEventType, handlerFor(l.applyVolumeBottled))
	l.root.RegisterHandler(core.VolumeBlendedEventType, handlerFor(l.applyVolumeBlended))
	l.root.RegisterHandler(core.VolumeMovedEventType, handlerFor(l.applyVolumeMoved))

	l.root.RegisterValidator(core.VolumeMovedEventType, validatorFor(l.validateVolumeMoved))
	l.root.RegisterValidator(core.VolumeBottledEventType, validatorFor(l.validateVolumeBottled))

	l.root.RegisterDecoder(core.WineLotCreatedEventType, decoderFor[core.WineLotCreated]())
	l.root.RegisterDecoder(core.WineLotUpdatedEventType, decoderFor[core.WineLotUpdated]())
	l.root.RegisterDecoder(core.WineLotDeletedEventType, decoderFor[core.WineLotDeleted]())
	l.root.RegisterDecoder(core.VolumeReceivedEventType, decoderFor[core.VolumeReceived]())
	l.root.RegisterDecoder(core.VolumeRemeasuredEventType, decoderFor[core.VolumeRemeasured]())
	l.root.RegisterDecoder(core.VolumeBottledEventType, decoderFor[core.VolumeBottled]())
	l.root.RegisterDecoder(core.VolumeBlendedEventType, decoderFor[core.VolumeBlended]())
	l.root.RegisterDecoder(core.VolumeMovedEventType, decoderFor[core.VolumeMoved]())
}

func (l *WineLot) applyCreated(event core.WineLotCreated) error {
	l.code = event.Code
	l.components = event.Components

	return nil
}

func (l *WineLot) applyUpdated(event core.WineLotUpdated) error {
	l.code = event.Code.After

	return nil
}

func (l *WineLot) applyDeleted(event core.WineLotDeleted) error {
	l.code = event.Code
	occurredAt := event.OccurredAt
	l.deletedAt = &occurredAt

	return nil
}

func (l *WineLot) applyVolumeReceived(event core.VolumeReceived) error {
	l.volume = l.volume.Add(event.Volume)

	return nil
}

func (l *WineLot) applyVolumeRemeasured(event core.VolumeRemeasured) error {
	l.volume = event.Volume

	return nil
}

func (l *WineLot) applyVolumeBottled(event core.VolumeBottled) error {
	l.volume = l.volume.Sub(event.Volume)

	return nil
}

func (l *WineLot) applyVolumeBlended(event core.VolumeBlended) error {
	l.volume = l.volume.Add(event.VolumeReceived)

	return nil
}

func (l *WineLot) applyVolumeMoved(event core.VolumeMoved) error {
	l.volume = l.volume.Sub(event.Volume)

	return nil
}

func (l *WineLot) validateVolumeMoved(event core.VolumeMoved) error {
	if l.volume.Sub(event.Volume).IsNegative() {
		return fmt.Errorf("moved %w: current %s, moved %s",
			ErrVolumeExceedsCurrent, l.volume.String(), event.Volume.String())
	}

	return nil
}

func (l *WineLot) validateVolumeBottled(event core.VolumeBottled) error {
	if l.volume.Sub(event.Volume).IsNegative() {
		return fmt.Errorf("bottled %w: current %s, bottled %s",
			ErrVolumeExceedsCurrent, l.volume.String(), event.Volume.String())
	}

	return nil
}

func validateCode(code string) error {
	if len(code) < 2 || len(code) > 50 || !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidLotCode, code)
	}

	return nil
}

func marshalState(state any) (json.RawMessage, error) {
	data, err := jsonCodec.Marshal(state)
	if err != nil {
		return nil, err
	}

	return data, nil
}

var _ aggregate.Editable = (*WineLot)(nil)
