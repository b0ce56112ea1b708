package core

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigFastest

// Action type identifiers, the discriminator of the details unions.
const (
	ActionTypeReceiveVolume = "RECEIVE_VOLUME"
	ActionTypeBlend         = "BLEND"
	ActionTypeRemeasure     = "REMEASURE"
	ActionTypeBottle        = "BOTTLE"
)

// ErrUnknownActionType is returned when a details payload carries an action type
// no variant is known for.
var ErrUnknownActionType = errors.New("unknown action type in details payload")

// ReceiveVolumeData describes a volume receipt into one wine lot.
type ReceiveVolumeData struct {
	ActionType string          `json:"action_type"`
	WineLotID  string          `json:"wine_lot_id"`
	Volume     decimal.Decimal `json:"volume"`
}

// BuildReceiveVolumeData creates receive-volume details.
func BuildReceiveVolumeData(wineLotID string, volume decimal.Decimal) ReceiveVolumeData {
	return ReceiveVolumeData{ActionType: ActionTypeReceiveVolume, WineLotID: wineLotID, Volume: volume}
}

// MeasureVolumeData describes a fresh volume measurement of one wine lot.
type MeasureVolumeData struct {
	ActionType string          `json:"action_type"`
	WineLotID  string          `json:"wine_lot_id"`
	Volume     decimal.Decimal `json:"volume"`
}

// BuildMeasureVolumeData creates remeasure details.
func BuildMeasureVolumeData(wineLotID string, volume decimal.Decimal) MeasureVolumeData {
	return MeasureVolumeData{ActionType: ActionTypeRemeasure, WineLotID: wineLotID, Volume: volume}
}

// BlendData describes a blend of several source lots into one receiving lot.
// BlendedVolume is what actually arrived in the receiving lot; blending losses
// make it differ from the sum of BlendVolumes.
type BlendData struct {
	ActionType         string                     `json:"action_type"`
	BlendVolumes       map[string]decimal.Decimal `json:"blend_volumes"`
	ReceivingWineLotID string                     `json:"receiving_wine_lot_id"`
	BlendedVolume      decimal.Decimal            `json:"blended_volume"`
}

// BuildBlendData creates blend details.
func BuildBlendData(blendVolumes map[string]decimal.Decimal, receivingWineLotID string, blendedVolume decimal.Decimal) BlendData {
	return BlendData{
		ActionType:         ActionTypeBlend,
		BlendVolumes:       blendVolumes,
		ReceivingWineLotID: receivingWineLotID,
		BlendedVolume:      blendedVolume,
	}
}

// BottleData describes a bottling run drawn from one wine lot.
type BottleData struct {
	ActionType    string          `json:"action_type"`
	WineLotID     string          `json:"wine_lot_id"`
	VolumeBottled decimal.Decimal `json:"volume_bottled"`
	Bottles       int             `json:"bottles"`
}

// BuildBottleData creates bottling details.
func BuildBottleData(wineLotID string, volumeBottled decimal.Decimal, bottles int) BottleData {
	return BottleData{ActionType: ActionTypeBottle, WineLotID: wineLotID, VolumeBottled: volumeBottled, Bottles: bottles}
}

// ActionDetails is the details union of an action, discriminated on the
// action_type field of the JSON payload. Exactly one variant is set.
type ActionDetails struct {
	ReceiveVolume *ReceiveVolumeData
	Remeasure     *MeasureVolumeData
	Blend         *BlendData
	Bottle        *BottleData
}

// ActionType returns the discriminator of the set variant.
func (d ActionDetails) ActionType() string {
	switch {
	case d.ReceiveVolume != nil:
		return ActionTypeReceiveVolume
	case d.Remeasure != nil:
		return ActionTypeRemeasure
	case d.Blend != nil:
		return ActionTypeBlend
	case d.Bottle != nil:
		return ActionTypeBottle
	default:
		return ""
	}
}

// InvolvedWineLotIDs returns the IDs of all wine lots the action touches,
// receiving lot first for blends.
func (d ActionDetails) InvolvedWineLotIDs() []string {
	switch {
	case d.ReceiveVolume != nil:
		return []string{d.ReceiveVolume.WineLotID}
	case d.Remeasure != nil:
		return []string{d.Remeasure.WineLotID}
	case d.Blend != nil:
		ids := []string{d.Blend.ReceivingWineLotID}
		for id := range d.Blend.BlendVolumes {
			ids = append(ids, id)
		}
		return ids
	case d.Bottle != nil:
		return []string{d.Bottle.WineLotID}
	default:
		return nil
	}
}

// MarshalJSON flattens the set variant into the payload.
func (d ActionDetails) MarshalJSON() ([]byte, error) {
	switch {
	case d.ReceiveVolume != nil:
		return json.Marshal(d.ReceiveVolume)
	case d.Remeasure != nil:
		return json.Marshal(d.Remeasure)
	case d.Blend != nil:
		return json.Marshal(d.Blend)
	case d.Bottle != nil:
		return json.Marshal(d.Bottle)
	default:
		return nil, ErrUnknownActionType
	}
}

// UnmarshalJSON picks the variant by the action_type discriminator.
func (d *ActionDetails) UnmarshalJSON(data []byte) error {
	var probe struct {
		ActionType string `json:"action_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	*d = ActionDetails{}

	switch probe.ActionType {
	case ActionTypeReceiveVolume:
		d.ReceiveVolume = &ReceiveVolumeData{}
		return json.Unmarshal(data, d.ReceiveVolume)
	case ActionTypeRemeasure:
		d.Remeasure = &MeasureVolumeData{}
		return json.Unmarshal(data, d.Remeasure)
	case ActionTypeBlend:
		d.Blend = &BlendData{}
		return json.Unmarshal(data, d.Blend)
	case ActionTypeBottle:
		d.Bottle = &BottleData{}
		return json.Unmarshal(data, d.Bottle)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActionType, probe.ActionType)
	}
}
