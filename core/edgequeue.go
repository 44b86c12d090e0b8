package core

// EdgeQueue is the virtual counter of a compare timer built from one delay
// engine per channel, such as a PIO state machine consuming
// (action, delay) words. An engine drives an edge, waits for its next word,
// then counts that word's delay; it reports how long it waited so the
// following delay can take it back. Positions are counter ticks modulo the
// period.
type EdgeQueue struct {
	period   uint32
	overhead uint32 // Ticks from one edge to the next outside the delay
	lead     uint32 // Ticks from a restart to the first wait, as after an edge

	last  [NumChannels]uint32 // Compare of the last queued event
	late  [NumChannels]int32  // Ticks the last driven edge trails its compare
	full  [NumChannels]bool   // Last queued event is a whole period after the one before
	now   uint32              // Position of the edge being serviced
	fresh bool                // Restarted and not run since
}

// NewEdgeQueue returns a queue restarted at position 0
func NewEdgeQueue(period, overhead, lead uint32) *EdgeQueue {
	q := &EdgeQueue{overhead: overhead, lead: lead}
	q.Restart(period, 0)
	return q
}

// Restart drops all history and puts both channels on v
func (q *EdgeQueue) Restart(period, v uint32) {
	q.period = period
	v %= period
	for ch := range q.last {
		q.last[ch] = v
		q.late[ch] = -int32(q.lead)
		q.full[ch] = false
	}
	q.now = v
	q.fresh = true
}

// Run marks the engines as started
func (q *EdgeQueue) Run() {
	q.fresh = false
}

// Fresh reports whether the engines have not run since the last Restart
func (q *EdgeQueue) Fresh() bool {
	return q.fresh
}

func (q *EdgeQueue) Period() uint32 {
	return q.period
}

// Now returns the position of the edge being serviced
func (q *EdgeQueue) Now() uint32 {
	return q.now
}

// Rebase moves the current position to v and both channels with it
func (q *EdgeQueue) Rebase(v uint32) {
	v %= q.period
	shift := v + q.period - q.now
	for ch := range q.last {
		q.last[ch] = (q.last[ch] + shift) % q.period
	}
	q.now = v
}

// Acknowledge makes the last queued edge of ch the current position
func (q *EdgeQueue) Acknowledge(ch Channel) {
	q.now = q.last[ch]
}

// AddStall records ticks the engine of ch waited after its last edge
func (q *EdgeQueue) AddStall(ch Channel, ticks uint32) {
	q.late[ch] += int32(ticks)
}

// Queue makes v the next compare of ch and returns the delay to hand its
// engine. A compare equal to the last one is a full period away. When the
// engine is further behind than the span allows, the delay is 0 and the
// rest is carried to the next event.
func (q *EdgeQueue) Queue(ch Channel, v uint32) uint32 {
	v %= q.period
	span := (v + q.period - q.last[ch]) % q.period
	q.full[ch] = span == 0
	if span == 0 {
		span = q.period
	}

	delay := int64(span) - int64(q.late[ch]) - int64(q.overhead)
	q.late[ch] = 0
	if delay < 0 {
		q.late[ch] = int32(-delay)
		delay = 0
	}
	q.last[ch] = v
	return uint32(delay)
}

// Last returns the compare of the last event queued on ch
func (q *EdgeQueue) Last(ch Channel) uint32 {
	return q.last[ch]
}

// CamDue reports that the cam's queued edge falls on the crank's last
// queued position within the same revolution
func (q *EdgeQueue) CamDue() bool {
	return q.last[ChannelCam] == q.last[ChannelCrank] && !q.full[ChannelCam]
}
