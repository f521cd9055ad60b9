package ringlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushKeepsNewestFirst(t *testing.T) {
	log := New[int](5)

	for i := 1; i <= 3; i++ {
		log.Push(i)
	}

	assert.Equal(t, []int{3, 2, 1}, log.All())
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	log := New[int](10)

	for i := 0; i < 10+37; i++ {
		log.Push(i)
		require.LessOrEqual(t, log.Len(), 10)
	}

	all := log.All()
	assert.Len(t, all, 10)
	// Oldest entries were dropped.
	assert.Equal(t, 46, all[0])
	assert.Equal(t, 37, all[9])
}

func TestFilterAndCount(t *testing.T) {
	log := New[int](20)
	for i := 0; i < 10; i++ {
		log.Push(i)
	}

	even := log.Filter(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{8, 6, 4, 2, 0}, even)
	assert.Equal(t, 5, log.Count(func(v int) bool { return v%2 == 0 }))
}

func TestRetainReportsDropped(t *testing.T) {
	log := New[int](20)
	for i := 0; i < 10; i++ {
		log.Push(i)
	}

	dropped := log.Retain(func(v int) bool { return v >= 5 })

	assert.Equal(t, 5, dropped)
	assert.Equal(t, 5, log.Len())
	assert.Equal(t, []int{9, 8, 7, 6, 5}, log.All())
}

func TestAllReturnsCopy(t *testing.T) {
	log := New[int](5)
	log.Push(1)

	snapshot := log.All()
	snapshot[0] = 99

	assert.Equal(t, []int{1}, log.All())
}
