package es

// DefaultQueueSize is used when a service is added with a non-positive queue size
const DefaultQueueSize = 16

// queue is a fixed-capacity FIFO. Unlike a telemetry ring it never overwrites: a push into a full queue
// is refused and the caller reports it.
type queue struct {
	data       []Event
	head, tail int // head = next pop, tail = next push
	count      int
	highWater  int
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &queue{data: make([]Event, size)}
}

func (q *queue) push(e Event) bool {
	if q.count == len(q.data) {
		return false
	}
	q.data[q.tail] = e
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	if q.count > q.highWater {
		q.highWater = q.count
	}
	return true
}

func (q *queue) pop() (Event, bool) {
	if q.count == 0 {
		return None, false
	}
	e := q.data[q.head]
	q.data[q.head] = None
	q.head = (q.head + 1) % len(q.data)
	q.count--
	return e, true
}

func (q *queue) len() int { return q.count }

func (q *queue) reset() {
	for i := range q.data {
		q.data[i] = None
	}
	q.head, q.tail, q.count = 0, 0, 0
}
