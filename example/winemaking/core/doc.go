// Package core contains the domain events and value types of the winemaking
// domain: wine lot lifecycle and volume events, action bookkeeping events, and
// the composition value types. Events are plain data with Build factories; all
// behavior lives in the domain package.
package core
