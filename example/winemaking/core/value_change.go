package core

// ValueChange records a field edit as its value before and after the change, so
// edit events stay self-describing when history is replayed or audited.
type ValueChange[V any] struct {
	Before V `json:"before"`
	After  V `json:"after"`
}

// ChangeOf creates a ValueChange from before to after.
func ChangeOf[V any](before, after V) ValueChange[V] {
	return ValueChange[V]{Before: before, After: after}
}
