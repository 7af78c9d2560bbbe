package coalesce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickQueue_DrainRunsInOrder(t *testing.T) {
	q := NewTickQueue()
	var got []int
	q.Schedule(func() { got = append(got, 1) })
	q.Schedule(func() {
		got = append(got, 2)
		q.Schedule(func() { got = append(got, 3) })
	})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}

func TestAfterFunc_Schedule(t *testing.T) {
	done := make(chan struct{})
	AfterFunc{}.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled function did not run")
	}
}
