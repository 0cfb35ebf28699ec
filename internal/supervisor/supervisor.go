package supervisor

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/SinaHkz/pcmatrix/internal/collector"
	"github.com/SinaHkz/pcmatrix/internal/consumer"
	"github.com/SinaHkz/pcmatrix/internal/producer"
	"github.com/SinaHkz/pcmatrix/pkg/backlog"
	"github.com/SinaHkz/pcmatrix/pkg/buffer"
	"github.com/SinaHkz/pcmatrix/pkg/types"
)

type Config struct {
	Producers     int   // producer workers
	Consumers     int   // consumer workers
	Capacity      int   // buffer slots
	ProduceTarget int64 // items created across all producers
	ConsumeTarget int64 // items taken across all consumers; 0 means ProduceTarget

	Logger *log.Logger // defaults to log.Default()
}

// Collaborators are the item-specific pieces of a run.
type Collaborators[T any] struct {
	Generator  types.Generator[T]
	Combiner   types.Combiner[T]
	Sink       types.Sink[T]
	Releaser   types.Releaser[T]
	Summarizer types.Summarizer[T]
}

// Report describes a finished run.
type Report struct {
	collector.Summary
	RunID uuid.UUID

	// Counter values at the end of the run.
	ProducedCount int64
	ConsumedCount int64

	// Discarded counts items still queued when every worker had stopped.
	// They were released by the supervisor.
	Discarded int
}

// Supervisor owns the state shared by all workers of one run: the buffer,
// the progress counters and the print lock.
type Supervisor[T any] struct {
	cfg   Config
	parts Collaborators[T]
	runID uuid.UUID

	buf      *buffer.Buffer[T]
	counters backlog.Counters
	printMu  sync.Mutex

	results   chan types.WorkerResult
	wg        sync.WaitGroup
	collector *collector.Collector
	done      chan struct{}

	startOnce sync.Once
	discarded int
}

func New[T any](cfg Config, parts Collaborators[T]) (*Supervisor[T], error) {
	if cfg.Producers < 1 || cfg.Consumers < 1 {
		return nil, fmt.Errorf("need at least one producer and one consumer, got %d/%d",
			cfg.Producers, cfg.Consumers)
	}
	if cfg.ProduceTarget < 0 || cfg.ConsumeTarget < 0 {
		return nil, errors.New("targets must not be negative")
	}
	if parts.Generator == nil || parts.Combiner == nil || parts.Sink == nil ||
		parts.Releaser == nil || parts.Summarizer == nil {
		return nil, errors.New("every collaborator is required")
	}
	if cfg.ConsumeTarget == 0 {
		cfg.ConsumeTarget = cfg.ProduceTarget
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	buf, err := buffer.New[T](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &Supervisor[T]{
		cfg:     cfg,
		parts:   parts,
		runID:   uuid.New(),
		buf:     buf,
		results: make(chan types.WorkerResult, cfg.Producers+cfg.Consumers),
		done:    make(chan struct{}),
	}, nil
}

func (s *Supervisor[T]) RunID() uuid.UUID { return s.runID }

// Start launches every worker. Calls after the first are no-ops.
func (s *Supervisor[T]) Start() {
	s.startOnce.Do(s.start)
}

func (s *Supervisor[T]) start() {
	l := s.cfg.Logger
	l.Printf("run %s: %d producer(s), %d consumer(s), buffer %d, targets %d/%d",
		s.runID, s.cfg.Producers, s.cfg.Consumers, s.cfg.Capacity,
		s.cfg.ProduceTarget, s.cfg.ConsumeTarget)

	s.collector = collector.Start(s.results, &s.wg, l)

	penv := producer.Env[T]{
		RunID:      s.runID,
		Buffer:     s.buf,
		Counters:   &s.counters,
		Target:     s.cfg.ProduceTarget,
		Generator:  s.parts.Generator,
		Releaser:   s.parts.Releaser,
		Summarizer: s.parts.Summarizer,
		Logger:     l,
	}
	cenv := consumer.Env[T]{
		RunID:      s.runID,
		Buffer:     s.buf,
		Counters:   &s.counters,
		Target:     s.cfg.ConsumeTarget,
		PrintLock:  &s.printMu,
		Combiner:   s.parts.Combiner,
		Sink:       s.parts.Sink,
		Releaser:   s.parts.Releaser,
		Summarizer: s.parts.Summarizer,
		Logger:     l,
	}

	var producers, consumers sync.WaitGroup
	producer.Spawn(1, s.cfg.Producers, penv, s.results, &producers)
	consumer.Spawn(1, s.cfg.Consumers, cenv, s.results, &consumers)

	s.wg.Add(2)
	// No producer left: consumers blocked on an empty buffer must see end
	// of stream.
	go func() {
		defer s.wg.Done()
		producers.Wait()
		s.buf.Close()
	}()
	// No consumer left: producers blocked on a full buffer must be let go,
	// and whatever they queued is released here.
	go func() {
		defer func() {
			close(s.results)
			s.wg.Done()
		}()
		consumers.Wait()
		s.buf.Close()
		producers.Wait()
		for _, item := range s.buf.Drain() {
			s.parts.Releaser.Release(item)
			s.discarded++
		}
		if s.discarded > 0 {
			l.Printf("run %s: released %d unconsumed item(s)", s.runID, s.discarded)
		}
	}()

	go func() {
		s.wg.Wait()
		close(s.done)
	}()
}

// Stop ends the run early by closing the buffer. Producers stop at their
// next Put; consumers drain what is queued and then stop.
func (s *Supervisor[T]) Stop() {
	s.cfg.Logger.Printf("run %s: stop requested", s.runID)
	s.buf.Close()
}

// Done is closed once every worker has returned and all results are in.
func (s *Supervisor[T]) Done() <-chan struct{} { return s.done }

// Wait blocks until the run is over and returns its report. Start must
// have been called.
func (s *Supervisor[T]) Wait() Report {
	<-s.done
	return Report{
		Summary:       s.collector.Summary(),
		RunID:         s.runID,
		ProducedCount: s.counters.Produced.Load(),
		ConsumedCount: s.counters.Consumed.Load(),
		Discarded:     s.discarded,
	}
}
