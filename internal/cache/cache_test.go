package cache

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_DisabledReturnsNoop(t *testing.T) {
	c := New(false, 16, 5, zap.NewNop())
	assert.IsType(t, noopCache{}, c)
	c.Set("k", []byte("v"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestNew_ZeroSizeOrTTLReturnsNoop(t *testing.T) {
	assert.IsType(t, noopCache{}, New(true, 0, 5, zap.NewNop()))
	assert.IsType(t, noopCache{}, New(true, 1, 0, zap.NewNop()))
}

func TestFreeCache_SetGetClear(t *testing.T) {
	c := New(true, 1, 5, zap.NewNop())
	assert.IsType(t, &FreeCache{}, c)

	c.Set("posts:all:all", []byte(`[]`))
	val, ok := c.Get("posts:all:all")
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), val)

	c.Clear()
	_, ok = c.Get("posts:all:all")
	assert.False(t, ok)
}

type countingMetrics struct {
	hits, misses int
}

func (m *countingMetrics) IncRequestsTotal(string, int)                 {}
func (m *countingMetrics) ObserveRequestDuration(string, time.Duration) {}
func (m *countingMetrics) IncPostsCreated(string)                       {}
func (m *countingMetrics) IncModerationRejected(string)                 {}
func (m *countingMetrics) IncStreakUpdates(string)                      {}
func (m *countingMetrics) IncCacheHits()                                { m.hits++ }
func (m *countingMetrics) IncCacheMisses()                              { m.misses++ }
func (m *countingMetrics) Handler() http.Handler                        { return nil }

func TestWithMetrics_CountsHitsAndMisses(t *testing.T) {
	m := &countingMetrics{}
	c := WithMetrics(New(true, 1, 5, zap.NewNop()), m)

	c.Get("missing")
	c.Set("k", []byte("v"))
	c.Get("k")
	c.Get("k")

	assert.Equal(t, 2, m.hits)
	assert.Equal(t, 1, m.misses)
}

func TestWithMetrics_SkipsNoop(t *testing.T) {
	m := &countingMetrics{}
	c := WithMetrics(New(false, 1, 5, zap.NewNop()), m)
	c.Get("k")
	assert.Zero(t, m.misses)
}
