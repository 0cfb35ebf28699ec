package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinaHkz/pcmatrix/internal/matrix"
	"github.com/SinaHkz/pcmatrix/internal/render"
	"github.com/SinaHkz/pcmatrix/pkg/types"
)

var quiet = log.New(io.Discard, "", 0)

func parts(k matrix.Kit) Collaborators[*matrix.Matrix] {
	return Collaborators[*matrix.Matrix]{
		Generator:  k,
		Combiner:   k,
		Sink:       render.Discard[*matrix.Matrix]{},
		Releaser:   k,
		Summarizer: k,
	}
}

func runToEnd(t *testing.T, cfg Config, p Collaborators[*matrix.Matrix]) Report {
	t.Helper()
	cfg.Logger = quiet
	sup, err := New(cfg, p)
	require.NoError(t, err)
	sup.Start()
	select {
	case <-sup.Done():
	case <-time.After(30 * time.Second):
		t.Fatal("run did not finish")
	}
	rep := sup.Wait()
	assert.Equal(t, sup.RunID(), rep.RunID)
	for _, w := range rep.Workers {
		assert.Equal(t, rep.RunID, w.RunID)
	}
	return rep
}

func TestRun_Conservation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		producers, consumers, capacity int
		target                         int64
		mode                           int
	}{
		{1, 1, 1, 3, 2},
		{1, 1, 200, 1200, 0},
		{4, 4, 8, 2000, 0},
		{8, 2, 1, 500, 0},
		{2, 8, 3, 777, 3},
	}
	for _, tc := range cases {
		tc := tc
		name := fmt.Sprintf("p%d_c%d_cap%d_n%d_m%d", tc.producers, tc.consumers, tc.capacity, tc.target, tc.mode)
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			k := matrix.NewKit(tc.mode, 99)
			rep := runToEnd(t, Config{
				Producers:     tc.producers,
				Consumers:     tc.consumers,
				Capacity:      tc.capacity,
				ProduceTarget: tc.target,
			}, parts(k))

			require.NoError(t, rep.Err)
			assert.Equal(t, tc.producers, rep.Produced.Workers)
			assert.Equal(t, tc.consumers, rep.Consumed.Workers)
			assert.EqualValues(t, tc.target, rep.Produced.MatrixTotal)
			assert.EqualValues(t, tc.target, rep.Consumed.MatrixTotal)
			assert.Equal(t, rep.Produced.SumTotal, rep.Consumed.SumTotal)
			assert.Equal(t, tc.target, rep.ProducedCount)
			assert.Equal(t, tc.target, rep.ConsumedCount)
			assert.Zero(t, rep.Discarded)
			assert.Zero(t, k.Arena.Live(), "leaked matrices")
			assert.Zero(t, k.Arena.DoubleReleases())
			assert.EqualValues(t, tc.target+int64(rep.Consumed.MultTotal), k.Arena.Allocated())
		})
	}
}

func TestRun_SquareMatricesAlwaysMultiply(t *testing.T) {
	t.Parallel()

	k := matrix.NewKit(2, 5)
	rep := runToEnd(t, Config{Producers: 1, Consumers: 1, Capacity: 4, ProduceTarget: 40}, parts(k))

	require.NoError(t, rep.Err)
	assert.Equal(t, 20, rep.Consumed.MultTotal)
	assert.Zero(t, rep.Consumed.Rejected)
}

func TestRun_SmallerConsumerTarget(t *testing.T) {
	t.Parallel()

	k := matrix.NewKit(0, 3)
	rep := runToEnd(t, Config{
		Producers:     3,
		Consumers:     1,
		Capacity:      4,
		ProduceTarget: 100,
		ConsumeTarget: 10,
	}, parts(k))

	require.NoError(t, rep.Err)
	assert.Equal(t, 10, rep.Consumed.MatrixTotal)
	assert.Equal(t, rep.Produced.MatrixTotal, rep.Consumed.MatrixTotal+rep.Discarded)
	assert.Zero(t, k.Arena.Live())
	assert.Zero(t, k.Arena.DoubleReleases())
}

func TestStop_EndsLongRun(t *testing.T) {
	t.Parallel()

	k := matrix.NewKit(0, 11)
	sup, err := New(Config{
		Producers:     2,
		Consumers:     2,
		Capacity:      2,
		ProduceTarget: 1 << 40,
		Logger:        quiet,
	}, parts(k))
	require.NoError(t, err)

	sup.Start()
	sup.Start()
	time.Sleep(20 * time.Millisecond)
	sup.Stop()

	select {
	case <-sup.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not end the run")
	}
	rep := sup.Wait()

	require.NoError(t, rep.Err)
	assert.Less(t, rep.ProducedCount, int64(1<<40))
	assert.Equal(t, rep.Produced.MatrixTotal, rep.Consumed.MatrixTotal+rep.Discarded)
	assert.Zero(t, k.Arena.Live())
	assert.Zero(t, k.Arena.DoubleReleases())
}

type brokenCombiner struct{}

var errBroken = errors.New("multiplier offline")

func (brokenCombiner) Combine(_, _ *matrix.Matrix) (*matrix.Matrix, error) { return nil, errBroken }

func TestRun_WorkerErrorSurfaces(t *testing.T) {
	t.Parallel()

	k := matrix.NewKit(2, 1)
	p := parts(k)
	p.Combiner = brokenCombiner{}
	rep := runToEnd(t, Config{Producers: 2, Consumers: 1, Capacity: 2, ProduceTarget: 50}, p)

	require.Error(t, rep.Err)
	assert.ErrorIs(t, rep.Err, types.ErrWorkerAborted)
	assert.ErrorIs(t, rep.Err, errBroken)
	assert.Zero(t, k.Arena.Live())
	assert.Zero(t, k.Arena.DoubleReleases())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	k := matrix.NewKit(0, 1)

	_, err := New(Config{Producers: 1, Consumers: 1, Capacity: 0, ProduceTarget: 1}, parts(k))
	assert.ErrorIs(t, err, types.ErrInvalidCapacity)

	_, err = New(Config{Producers: 0, Consumers: 1, Capacity: 1, ProduceTarget: 1}, parts(k))
	assert.Error(t, err)

	_, err = New(Config{Producers: 1, Consumers: 1, Capacity: 1, ProduceTarget: -1}, parts(k))
	assert.Error(t, err)

	p := parts(k)
	p.Sink = nil
	_, err = New(Config{Producers: 1, Consumers: 1, Capacity: 1, ProduceTarget: 1}, p)
	assert.Error(t, err)
}
