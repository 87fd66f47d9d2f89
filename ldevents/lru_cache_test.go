package ldevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache(t *testing.T) {
	t.Run("a key seen for the first time reports not-seen", func(t *testing.T) {
		c := newLruCache(10)
		assert.False(t, c.add("a"))
	})

	t.Run("a key seen again reports already-seen", func(t *testing.T) {
		c := newLruCache(10)
		c.add("a")
		assert.True(t, c.add("a"))
	})

	t.Run("capacity is enforced by evicting the least recently used key", func(t *testing.T) {
		c := newLruCache(2)
		c.add("a")
		c.add("b")
		c.add("c") // evicts "a", the oldest

		assert.True(t, c.add("c"))
		assert.True(t, c.add("b"))
		assert.False(t, c.add("a")) // forgotten, so reported as new again
	})

	t.Run("touching a key refreshes its recency", func(t *testing.T) {
		c := newLruCache(2)
		c.add("a")
		c.add("b")
		c.add("a") // "a" is now the most recently used, "b" is the oldest
		c.add("c") // evicts "b"

		assert.True(t, c.add("c"))
		assert.True(t, c.add("a"))
		assert.False(t, c.add("b"))
	})

	t.Run("clear forgets every key", func(t *testing.T) {
		c := newLruCache(10)
		c.add("a")
		c.add("b")
		c.clear()

		assert.False(t, c.add("a"))
		assert.False(t, c.add("b"))
	})

	t.Run("a non-positive capacity never remembers anything", func(t *testing.T) {
		c := newLruCache(0)
		assert.False(t, c.add("a"))
		assert.False(t, c.add("a"))
	})
}
