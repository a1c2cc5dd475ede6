package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestAcquire_CreatesAndReuses(t *testing.T) {
	st := NewStore(time.Minute, newClock().Now)

	s, created := st.Acquire("")
	require.True(t, created)
	require.NotEmpty(t, s.ID)
	require.NotNil(t, s.Inbox)

	again, created := st.Acquire(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)
}

func TestAcquire_RejectsForeignIDs(t *testing.T) {
	st := NewStore(time.Minute, newClock().Now)

	s, created := st.Acquire("not-a-uuid")
	assert.True(t, created)
	assert.NotEqual(t, "not-a-uuid", s.ID)

	s2, created := st.Acquire("6f1c2a9e-8d7b-4c1e-9f3a-2b5d8e7c6a41")
	assert.True(t, created)
	assert.NotEqual(t, "6f1c2a9e-8d7b-4c1e-9f3a-2b5d8e7c6a41", s2.ID)
}

func TestExpiry(t *testing.T) {
	c := newClock()
	st := NewStore(time.Minute, c.Now)
	s, _ := st.Acquire("")

	c.Advance(30 * time.Second)
	_, ok := st.Get(s.ID)
	require.True(t, ok, "use within ttl keeps the session alive")

	c.Advance(50 * time.Second)
	_, ok = st.Get(s.ID)
	require.True(t, ok)

	c.Advance(2 * time.Minute)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)

	replacement, created := st.Acquire(s.ID)
	assert.True(t, created)
	assert.NotEqual(t, s.ID, replacement.ID)
}

func TestSweep(t *testing.T) {
	c := newClock()
	st := NewStore(time.Minute, c.Now)
	old, _ := st.Acquire("")
	c.Advance(2 * time.Minute)
	fresh, _ := st.Acquire("")

	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 1, st.Len())

	_, ok := st.Get(fresh.ID)
	assert.True(t, ok)
	_, ok = st.Get(old.ID)
	assert.False(t, ok)
}

func TestValue(t *testing.T) {
	st := NewStore(0, nil)
	s, _ := st.Acquire("")

	calls := 0
	create := func() *int {
		calls++
		v := 7
		return &v
	}

	a := Value(s, "screen", create)
	b := Value(s, "screen", create)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)

	str := Value(s, "screen", func() string { return "other" })
	assert.Equal(t, "other", str)

	s.Forget("screen")
	Value(s, "screen", create)
	assert.Equal(t, 2, calls)
}
