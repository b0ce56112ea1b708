package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReceiveVolumeEditData describes an edit of a volume receipt.
type ReceiveVolumeEditData struct {
	ActionType string                       `json:"action_type"`
	WineLotID  ValueChange[string]          `json:"wine_lot_id"`
	Volume     ValueChange[decimal.Decimal] `json:"volume"`
}

// BuildReceiveVolumeEditData creates receive-volume edit details.
func BuildReceiveVolumeEditData(wineLotID ValueChange[string], volume ValueChange[decimal.Decimal]) ReceiveVolumeEditData {
	return ReceiveVolumeEditData{ActionType: ActionTypeReceiveVolume, WineLotID: wineLotID, Volume: volume}
}

// MeasureVolumeEditData describes an edit of a volume remeasurement.
type MeasureVolumeEditData struct {
	ActionType string                       `json:"action_type"`
	WineLotID  ValueChange[string]          `json:"wine_lot_id"`
	Volume     ValueChange[decimal.Decimal] `json:"volume"`
}

// BuildMeasureVolumeEditData creates remeasure edit details.
func BuildMeasureVolumeEditData(wineLotID ValueChange[string], volume ValueChange[decimal.Decimal]) MeasureVolumeEditData {
	return MeasureVolumeEditData{ActionType: ActionTypeRemeasure, WineLotID: wineLotID, Volume: volume}
}

// BlendEditData describes an edit of a blend.
type BlendEditData struct {
	ActionType         string                                  `json:"action_type"`
	BlendVolumes       ValueChange[map[string]decimal.Decimal] `json:"blend_volumes"`
	ReceivingWineLotID ValueChange[string]                     `json:"receiving_wine_lot_id"`
	BlendedVolume      ValueChange[decimal.Decimal]            `json:"blended_volume"`
}

// BuildBlendEditData creates blend edit details.
func BuildBlendEditData(
	blendVolumes ValueChange[map[string]decimal.Decimal],
	receivingWineLotID ValueChange[string],
	blendedVolume ValueChange[decimal.Decimal],
) BlendEditData {

	return BlendEditData{
		ActionType:         ActionTypeBlend,
		BlendVolumes:       blendVolumes,
		ReceivingWineLotID: receivingWineLotID,
		BlendedVolume:      blendedVolume,
	}
}

// BottleEditData describes an edit of a bottling run.
type BottleEditData struct {
	ActionType    string                       `json:"action_type"`
	WineLotID     ValueChange[string]          `json:"wine_lot_id"`
	VolumeBottled ValueChange[decimal.Decimal] `json:"volume_bottled"`
	Bottles       ValueChange[int]             `json:"bottles"`
}

// BuildBottleEditData creates bottling edit details.
func BuildBottleEditData(
	wineLotID ValueChange[string],
	volumeBottled ValueChange[decimal.Decimal],
	bottles ValueChange[int],
) BottleEditData {

	return BottleEditData{ActionType: ActionTypeBottle, WineLotID: wineLotID, VolumeBottled: volumeBottled, Bottles: bottles}
}

// ActionEditDetails is the edit-details union of an action, discriminated on the
// action_type field of the JSON payload. Exactly one variant is set.
type ActionEditDetails struct {
	ReceiveVolume *ReceiveVolumeEditData
	Remeasure     *MeasureVolumeEditData
	Blend         *BlendEditData
	Bottle        *BottleEditData
}

// ActionType returns the discriminator of the set variant.
func (d ActionEditDetails) ActionType() string {
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

// After returns the edited action details, built from the after side of every change.
func (d ActionEditDetails) After() ActionDetails {
	switch {
	case d.ReceiveVolume != nil:
		data := BuildReceiveVolumeData(d.ReceiveVolume.WineLotID.After, d.ReceiveVolume.Volume.After)
		return ActionDetails{ReceiveVolume: &data}
	case d.Remeasure != nil:
		data := BuildMeasureVolumeData(d.Remeasure.WineLotID.After, d.Remeasure.Volume.After)
		return ActionDetails{Remeasure: &data}
	case d.Blend != nil:
		data := BuildBlendData(d.Blend.BlendVolumes.After, d.Blend.ReceivingWineLotID.After, d.Blend.BlendedVolume.After)
		return ActionDetails{Blend: &data}
	case d.Bottle != nil:
		data := BuildBottleData(d.Bottle.WineLotID.After, d.Bottle.VolumeBottled.After, d.Bottle.Bottles.After)
		return ActionDetails{Bottle: &data}
	default:
		return ActionDetails{}
	}
}

// MarshalJSON flattens the set variant into the payload.
func (d ActionEditDetails) MarshalJSON() ([]byte, error) {
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
func (d *ActionEditDetails) UnmarshalJSON(data []byte) error {
	var probe struct {
		ActionType string `json:"action_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	*d = ActionEditDetails{}

	switch probe.ActionType {
	case ActionTypeReceiveVolume:
		d.ReceiveVolume = &ReceiveVolumeEditData{}
		return json.Unmarshal(data, d.ReceiveVolume)
	case ActionTypeRemeasure:
		d.Remeasure = &MeasureVolumeEditData{}
		return json.Unmarshal(data, d.Remeasure)
	case ActionTypeBlend:
		d.Blend = &BlendEditData{}
		return json.Unmarshal(data, d.Blend)
	case ActionTypeBottle:
		d.Bottle = &BottleEditData{}
		return json.Unmarshal(data, d.Bottle)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActionType, probe.ActionType)
	}
}
