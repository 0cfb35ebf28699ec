package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsNil(t *testing.T) {
	t.Parallel()

	var (
		p  *int
		m  map[string]int
		s  []int
		c  chan int
		f  func()
		e  error
		st struct{}
	)
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"untyped nil", nil, true},
		{"nil pointer", p, true},
		{"nil map", m, true},
		{"nil slice", s, true},
		{"nil chan", c, true},
		{"nil func", f, true},
		{"nil error", e, true},
		{"pointer", new(int), false},
		{"empty map", map[string]int{}, false},
		{"empty slice", []int{}, false},
		{"func", func() {}, false},
		{"zero int", 0, false},
		{"empty string", "", false},
		{"struct", st, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsNil(tc.v))
		})
	}
}

func TestTotals_Add(t *testing.T) {
	t.Parallel()

	run := uuid.New()
	var tot Totals
	tot.Add(WorkerResult{RunID: run, WorkerID: 1, Role: RoleConsumer, SumTotal: 10, MatrixTotal: 4, MultTotal: 1, Rejected: 1})
	tot.Add(WorkerResult{RunID: run, WorkerID: 2, Role: RoleConsumer, SumTotal: -3, MatrixTotal: 2, MultTotal: 1})
	tot.Add(WorkerResult{RunID: run, WorkerID: 3, Role: RoleConsumer})

	assert.Equal(t, Totals{Workers: 3, SumTotal: 7, MatrixTotal: 6, MultTotal: 2, Rejected: 1}, tot)
}
