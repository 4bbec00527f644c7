package console

import "sync"

// Log is the ordered, append-only list of console rows.
type Log struct {
	mu          sync.RWMutex
	rows        []Row
	subscribers map[int]func(Row)
	nextSubID   int
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		rows:        make([]Row, 0),
		subscribers: make(map[int]func(Row)),
	}
}

// Append adds row at the end of the log and notifies subscribers.
func (l *Log) Append(row Row) {
	l.mu.Lock()
	l.rows = append(l.rows, row)
	subs := make([]func(Row), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(row)
	}
}

// restore appends rows loaded from a store without notifying anyone.
func (l *Log) restore(rows []Row) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, rows...)
}

// Len returns the number of rows.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rows)
}

// Rows returns a copy of every row, oldest first.
func (l *Log) Rows() []Row {
	return l.Since(0)
}

// Since returns a copy of the rows from index n on.
func (l *Log) Since(n int) []Row {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(l.rows) {
		return []Row{}
	}
	out := make([]Row, len(l.rows)-n)
	copy(out, l.rows[n:])
	return out
}

// Subscribe registers fn to be called with every appended row. fn runs on
// the appending goroutine and must not block. The returned function
// removes the subscription.
func (l *Log) Subscribe(fn func(Row)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subscribers, id)
	}
}

// SubscribeWithBacklog returns the current rows and registers fn for every
// later row, atomically, so a viewer sees each row exactly once.
func (l *Log) SubscribeWithBacklog(fn func(Row)) ([]Row, func()) {
	l.mu.Lock()
	backlog := make([]Row, len(l.rows))
	copy(backlog, l.rows)
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = fn
	l.mu.Unlock()

	return backlog, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subscribers, id)
	}
}
