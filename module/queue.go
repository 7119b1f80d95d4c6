package module

import (
	"sync"

	"github.com/pthm-cable/crprop/candidate"
)

// workQueue is the active population shared by the workers.
//
// Secondaries go on a stack that is served first, which keeps the population
// close to depth-first and bounds memory. Primaries are FIFO and the producer
// blocks once limit of them are waiting. Pushing secondaries never blocks,
// otherwise a worker could wait on itself.
type workQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	primaries   []*candidate.Candidate
	head        int
	secondaries []*candidate.Candidate

	limit     int
	inFlight  int
	closed    bool // no more primaries will arrive
	cancelled bool
}

func newWorkQueue(limit int) *workQueue {
	if limit < 1 {
		limit = 1
	}
	q := &workQueue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// pushPrimary enqueues a primary, waiting for room. Returns false if the
// queue was cancelled.
func (q *workQueue) pushPrimary(c *candidate.Candidate) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.primaries)-q.head >= q.limit && !q.cancelled {
		q.cond.Wait()
	}
	if q.cancelled {
		return false
	}
	q.primaries = append(q.primaries, c)
	q.cond.Broadcast()
	return true
}

// pushSecondaries enqueues candidates spawned during a step.
func (q *workQueue) pushSecondaries(cs []*candidate.Candidate) {
	if len(cs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelled {
		return
	}
	q.secondaries = append(q.secondaries, cs...)
	q.cond.Broadcast()
}

// pop takes the next candidate, blocking until one is available. It returns
// false once the population is exhausted or the queue is cancelled.
func (q *workQueue) pop() (*candidate.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.cancelled {
			return nil, false
		}
		if n := len(q.secondaries); n > 0 {
			c := q.secondaries[n-1]
			q.secondaries[n-1] = nil
			q.secondaries = q.secondaries[:n-1]
			q.inFlight++
			return c, true
		}
		if q.head < len(q.primaries) {
			c := q.primaries[q.head]
			q.primaries[q.head] = nil
			q.head++
			q.compact()
			q.inFlight++
			// wake the producer waiting for room
			q.cond.Broadcast()
			return c, true
		}
		if q.closed && q.inFlight == 0 {
			return nil, false
		}
		q.cond.Wait()
	}
}

// compact reclaims the consumed prefix of the primaries slice.
func (q *workQueue) compact() {
	if q.head == len(q.primaries) {
		q.primaries = q.primaries[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 > len(q.primaries) {
		n := copy(q.primaries, q.primaries[q.head:])
		clear(q.primaries[n:])
		q.primaries = q.primaries[:n]
		q.head = 0
	}
}

// done marks a popped candidate as finished.
func (q *workQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	if q.inFlight == 0 {
		q.cond.Broadcast()
	}
}

// closeInput signals that no more primaries will be pushed.
func (q *workQueue) closeInput() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// cancel discards everything queued and releases all waiters.
func (q *workQueue) cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cancelled = true
	q.primaries = nil
	q.head = 0
	q.secondaries = nil
	q.cond.Broadcast()
}

// length returns the number of queued candidates.
func (q *workQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.primaries) - q.head + len(q.secondaries)
}
