package sync_test

import (
	"testing"

	tsync "github.com/hbomb79/Tome/pkg/sync"
	"github.com/stretchr/testify/assert"
)

func Test_TypedSyncMap(t *testing.T) {
	m := tsync.TypedSyncMap[string, int]{}

	_, ok := m.Load("missing")
	assert.False(t, ok)

	m.Store("a", 1)
	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 2)
	assert.False(t, loaded)
	assert.Equal(t, 2, actual)

	seen := map[string]int{}
	m.Range(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, seen)

	assert.Equal(t, seen, m.Snapshot())
	assert.ElementsMatch(t, []int{1, 2}, m.Values())

	visits := 0
	m.Range(func(string, int) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits, "returning false must stop the iteration")

	v, loaded := m.LoadAndDelete("a")
	assert.True(t, loaded)
	assert.Equal(t, 1, v)

	m.Delete("b")
	_, ok = m.Load("b")
	assert.False(t, ok)
}
