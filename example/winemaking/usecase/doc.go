// Package usecase wires the winemaking domain to the unit of work and the
// replay engine. Each workflow runs inside one unit-of-work scope: it records
// or edits an action, applies the action's effects to the involved wine lots,
// and, when the action lands in the past, rewinds and reapplies downstream
// history so every later event still holds against the corrected state.
package usecase
