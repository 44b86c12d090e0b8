package core

// Direction of generator traversal
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

// Generator is an endless, restartable cursor over a wheel.
// It borrows the wheel; wheels are static and never mutated.
type Generator struct {
	wheel     *Wheel
	pos       int
	direction Direction
}

// NewGenerator returns a generator bound to w, positioned on event 0
func NewGenerator(w *Wheel) *Generator {
	return &Generator{wheel: w}
}

// Bind switches the generator to another wheel and resets it
func (g *Generator) Bind(w *Wheel) {
	g.wheel = w
	g.pos = 0
}

// Wheel returns the bound wheel
func (g *Generator) Wheel() *Wheel {
	return g.wheel
}

// Next returns the event at the cursor, then steps the cursor one position
// in the current direction, wrapping on the configured event count.
func (g *Generator) Next() AngleEvent {
	n := g.wheel.count
	ev := g.wheel.events[g.pos]
	if g.direction == Reverse {
		g.pos--
		if g.pos < 0 {
			g.pos = n - 1
		}
	} else {
		g.pos++
		if g.pos >= n {
			g.pos = 0
		}
	}
	return ev
}

// Reset moves the cursor back to event 0
func (g *Generator) Reset() {
	g.pos = 0
}

// SetDirection changes the traversal direction; the cursor is kept
func (g *Generator) SetDirection(d Direction) {
	g.direction = d
}

// Direction returns the current traversal direction
func (g *Generator) Direction() Direction {
	return g.direction
}

// Position returns the index of the event the next call to Next will return
func (g *Generator) Position() int {
	return g.pos
}

// Len returns the number of events in one revolution
func (g *Generator) Len() int {
	return g.wheel.count
}
