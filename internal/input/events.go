package input

import "time"

// PointerSample is one pointer position report from the native tracker.
// Samples arrive at roughly 60/sec while tracking is active and are
// consumed and discarded within a short rolling window.
type PointerSample struct {
	X                 float64
	Y                 float64
	Time              time.Time // monotonic-backed (time.Now of arrival or source timestamp)
	PrimaryButtonDown bool
}

// DragSignal reports the OS drag subsystem state. PayloadVersion advances
// only when the OS registers a genuinely new drag payload; an unchanged
// value across samples means no real drag has begun even with the button
// held and the pointer moving. That property is what lets the recognizer
// reject click+shake without a drag.
type DragSignal struct {
	Active         bool
	ItemPaths      []string
	PayloadVersion uint64
}

// Event is the one-of envelope carried on the pump queue. Exactly one of
// Sample and Drag is non-nil.
type Event struct {
	Sample *PointerSample
	Drag   *DragSignal
}
