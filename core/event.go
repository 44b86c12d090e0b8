package core

import "errors"

// Edge is the output transition associated with a wheel event
type Edge uint8

const (
	EdgeFalling Edge = iota
	EdgeRising
)

// Invert returns the opposite edge
func (e Edge) Invert() Edge {
	if e == EdgeRising {
		return EdgeFalling
	}
	return EdgeRising
}

func (e Edge) String() string {
	if e == EdgeRising {
		return "rising"
	}
	return "falling"
}

// WheelCapacity bounds the number of events a wheel table can hold
const WheelCapacity = 240

var (
	ErrConfigOverflow     = errors.New("wheel event count exceeds capacity")
	ErrInvalidCrankConfig = errors.New("crank config requires 0 < missing teeth < teeth")
	ErrCamAngleSum        = errors.New("cam angles do not sum to one revolution")
	ErrEmptyWheel         = errors.New("wheel has no events")
)

// AngleEvent is one position on a toothed wheel
type AngleEvent struct {
	Index     uint8  // Position in the wheel, 0 is the reference event
	Delta     uint32 // Angle ticks since the previous event
	Edge      Edge   // Output transition at this position
	Generates bool   // false keeps the output level unchanged (missing tooth)
}

// Wheel is an immutable, fixed-capacity sequence of angle events.
// Only the first Len() entries are meaningful.
type Wheel struct {
	events [WheelCapacity]AngleEvent
	count  int
}

// Len returns the configured number of events
func (w *Wheel) Len() int {
	return w.count
}

// Event returns the event at index i (0 <= i < Len())
func (w *Wheel) Event(i int) AngleEvent {
	return w.events[i]
}

// Sum returns the total angle covered by the wheel
func (w *Wheel) Sum() uint32 {
	var sum uint32
	for i := 0; i < w.count; i++ {
		sum += w.events[i].Delta
	}
	return sum
}

// push appends an event; the caller has already checked capacity
func (w *Wheel) push(delta uint32, edge Edge, generates bool) {
	w.events[w.count] = AngleEvent{
		Index:     uint8(w.count),
		Delta:     delta,
		Edge:      edge,
		Generates: generates,
	}
	w.count++
}
