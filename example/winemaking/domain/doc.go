// Package domain implements the winemaking aggregates on top of the aggregate
// root: WineLot, whose volume and composition are folded from events, and
// Action, the bookkeeping aggregate whose ID sequences every wine-lot event it
// produces. Context checks that must hold against corrected history (moved or
// bottled volume may not exceed the current volume) are registered as
// validators so they run again on every replay.
package domain
