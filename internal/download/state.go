package download

import (
	"fmt"
	"sort"

	"sefaria/internal/entity"
)

// queueState is the single source of truth for title status. The queue and
// in-progress lists are views over it, so a title can never be in both.
// Callers hold the service mutex.
type queueState struct {
	status map[string]entity.DownloadStatus
	seq    map[string]int64
	next   int64
}

func newQueueState() *queueState {
	return &queueState{
		status: make(map[string]entity.DownloadStatus),
		seq:    make(map[string]int64),
	}
}

func (q *queueState) get(title string) entity.DownloadStatus {
	if st, ok := q.status[title]; ok {
		return st
	}
	return entity.StatusNotQueued
}

// enqueue appends title to the back of the queue. Queued and running titles
// keep their place.
func (q *queueState) enqueue(title string) bool {
	switch q.get(title) {
	case entity.StatusQueued, entity.StatusInProgress:
		return false
	}
	q.status[title] = entity.StatusQueued
	q.seq[title] = q.next
	q.next++
	return true
}

// toFront moves a queued or running title to the head of the queue.
func (q *queueState) toFront(title string) bool {
	switch q.get(title) {
	case entity.StatusQueued, entity.StatusInProgress:
	default:
		return false
	}
	first := q.next
	for t, st := range q.status {
		if st == entity.StatusQueued && t != title && q.seq[t] < first {
			first = q.seq[t]
		}
	}
	q.status[title] = entity.StatusQueued
	q.seq[title] = first - 1
	return true
}

func (q *queueState) start(title string) error {
	if st := q.get(title); st != entity.StatusQueued {
		return fmt.Errorf("start %s: status %s", title, st)
	}
	q.status[title] = entity.StatusInProgress
	return nil
}

func (q *queueState) finish(title string) error {
	if st := q.get(title); st != entity.StatusInProgress {
		return fmt.Errorf("finish %s: status %s", title, st)
	}
	q.status[title] = entity.StatusDone
	delete(q.seq, title)
	return nil
}

func (q *queueState) markDone(title string) {
	q.status[title] = entity.StatusDone
	delete(q.seq, title)
}

func (q *queueState) reset(title string) {
	delete(q.status, title)
	delete(q.seq, title)
}

// front returns the head of the queue.
func (q *queueState) front() (string, bool) {
	queue := q.queue()
	if len(queue) == 0 {
		return "", false
	}
	return queue[0], true
}

// queue lists queued titles in order.
func (q *queueState) queue() []string {
	out := []string{}
	for t, st := range q.status {
		if st == entity.StatusQueued {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if q.seq[out[i]] != q.seq[out[j]] {
			return q.seq[out[i]] < q.seq[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func (q *queueState) inProgress() []string {
	out := []string{}
	for t, st := range q.status {
		if st == entity.StatusInProgress {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// restore rebuilds the state from the persisted lists. Titles found running
// are put back at the head of the queue.
func (q *queueState) restore(queue, inProgress []string) {
	for _, t := range queue {
		q.enqueue(t)
	}
	for i := len(inProgress) - 1; i >= 0; i-- {
		t := inProgress[i]
		q.enqueue(t)
		q.toFront(t)
	}
}
