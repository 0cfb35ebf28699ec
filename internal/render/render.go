package render

import (
	"bufio"
	"io"
	"sync"

	"github.com/eapache/queue"
)

// Format turns an item into its display text, newline terminated.
type Format[T any] func(item T) string

// block builds the text of one Render/Mark call. A product (the item that
// follows the "=" marker) gets an empty line after it.
type block struct {
	closing bool
}

func (b *block) render(text string) string {
	if b.closing {
		b.closing = false
		return text + "\n"
	}
	return text
}

func (b *block) mark(symbol string) string {
	b.closing = symbol == "="
	return "    " + symbol + "\n"
}

// Stream writes every item to a writer as it is rendered.
type Stream[T any] struct {
	w      *bufio.Writer
	format Format[T]
	b      block
	err    error
}

func NewStream[T any](w io.Writer, format Format[T]) *Stream[T] {
	return &Stream[T]{w: bufio.NewWriter(w), format: format}
}

// Render writes item. Output is flushed after every product so a
// complete equation is visible as soon as it is rendered.
func (s *Stream[T]) Render(item T) {
	product := s.b.closing
	s.write(s.b.render(s.format(item)))
	if product && s.err == nil {
		s.err = s.w.Flush()
	}
}

func (s *Stream[T]) Mark(symbol string) { s.write(s.b.mark(symbol)) }

func (s *Stream[T]) write(text string) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.WriteString(text)
}

// Flush pushes buffered output to the writer and returns the first write
// error seen.
func (s *Stream[T]) Flush() error {
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}

// Deferred formats items while they are still alive and queues the text;
// nothing is written until Flush.
type Deferred[T any] struct {
	mu     sync.Mutex
	format Format[T]
	b      block
	q      *queue.Queue
}

func NewDeferred[T any](format Format[T]) *Deferred[T] {
	return &Deferred[T]{format: format, q: queue.New()}
}

func (d *Deferred[T]) Render(item T) {
	d.mu.Lock()
	d.q.Add(d.b.render(d.format(item)))
	d.mu.Unlock()
}

func (d *Deferred[T]) Mark(symbol string) {
	d.mu.Lock()
	d.q.Add(d.b.mark(symbol))
	d.mu.Unlock()
}

// Pending returns how many blocks are waiting for Flush.
func (d *Deferred[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}

// Flush writes queued blocks to w in arrival order, oldest first.
func (d *Deferred[T]) Flush(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	bw := bufio.NewWriter(w)
	for d.q.Length() > 0 {
		if _, err := bw.WriteString(d.q.Remove().(string)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Discard renders nothing.
type Discard[T any] struct{}

func (Discard[T]) Render(T)     {}
func (Discard[T]) Mark(string) {}
