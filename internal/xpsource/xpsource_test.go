package xpsource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	Base
	priority  int
	available bool
	initCount int
	downCount int
	initErr   error
}

func newFake(name string, priority int) *fakeSource {
	return &fakeSource{Base: NewBase(name, name, ""), priority: priority, available: true}
}

func (f *fakeSource) Priority() int   { return f.priority }
func (f *fakeSource) Available() bool { return f.available }
func (f *fakeSource) Init() error {
	f.initCount++
	return f.initErr
}
func (f *fakeSource) Shutdown() { f.downCount++ }

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	low := newFake("low", 1)
	high := newFake("high", 10)
	mid := newFake("mid", 5)
	r.Register(low)
	r.Register(high)
	r.Register(mid)

	all := r.All()
	require.Len(t, all, 3)
	require.Equal(t, "high", all[0].Name())
	require.Equal(t, "mid", all[1].Name())
	require.Equal(t, "low", all[2].Name())
}

func TestRegistryActiveFiltersDisabledAndUnavailable(t *testing.T) {
	r := NewRegistry()
	a := newFake("a", 0)
	b := newFake("b", 0)
	c := newFake("c", 0)
	b.SetEnabled(false)
	c.available = false
	r.Register(a)
	r.Register(b)
	r.Register(c)

	active := r.Active()
	require.Len(t, active, 1)
	require.Equal(t, "a", active[0].Name())
}

func TestInitAllSkipsDisabledAndFailing(t *testing.T) {
	r := NewRegistry()
	ok := newFake("ok", 0)
	off := newFake("off", 0)
	off.SetEnabled(false)
	broken := newFake("broken", 0)
	broken.initErr = errors.New("no deps")
	r.Register(ok)
	r.Register(off)
	r.Register(broken)

	r.InitAll()
	require.Equal(t, 1, ok.initCount)
	require.Equal(t, 0, off.initCount)
	require.Equal(t, 1, broken.initCount) // attempted, failure tolerated
}

func TestClearShutsDown(t *testing.T) {
	r := NewRegistry()
	s := newFake("s", 0)
	r.Register(s)
	r.Clear()
	require.Equal(t, 1, s.downCount)
	require.Empty(t, r.All())
	require.Nil(t, r.Get("s"))
}
