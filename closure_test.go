package tamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_RejectsSecondClosureOnSameRendezvous(t *testing.T) {
	d := newTestDriver(t)
	r := NewGatherRendezvous()

	c1 := NewClosure(d, func(int) (int, bool) { return -1, true })
	c2 := NewClosure(d, func(int) (int, bool) { return -1, true })

	require.NoError(t, Block(d, c1, r, 0))
	assert.ErrorIs(t, Block(d, c2, r, 0), ErrAlreadyBlocked)
}

func TestBlock_RejectsForeignDriver(t *testing.T) {
	d1 := newTestDriver(t)
	d2 := newTestDriver(t)
	r := NewGatherRendezvous()

	c := NewClosure(d1, func(int) (int, bool) { return -1, true })
	assert.ErrorIs(t, Block(d2, c, r, 0), ErrBlockOutsideDriver)
}

func TestClosure_AnnotateAndLocation(t *testing.T) {
	d := newTestDriver(t)
	c := NewClosure(d, func(int) (int, bool) { return -1, true })

	assert.Equal(t, "", c.Location())

	c.Annotate("worker.go", 42, "waiting on reply")
	assert.Equal(t, "worker.go:42", c.Location())
	assert.Equal(t, "waiting on reply", c.LocationDescription())
}

func TestDriver_BlockedLocations(t *testing.T) {
	d := newTestDriver(t)
	r := NewGatherRendezvous()

	c := NewClosure(d, func(int) (int, bool) { return -1, true })
	c.Annotate("worker.go", 10, "")
	require.NoError(t, Block(d, c, r, 0))

	locs := d.BlockedLocations()
	require.Len(t, locs, 1)
	assert.Equal(t, "worker.go:10", locs[0])

	h := MakeEvent0(r)
	h.Trigger()
	d.runUnblocked()

	assert.Empty(t, d.BlockedLocations())
}

func TestBlock_ReleaseModeReportsMisuseViaErrorHandler(t *testing.T) {
	var reported error
	d := &Driver{errorHandler: func(err error) { reported = err }}
	r := NewGatherRendezvous()

	c1 := NewClosure(d, func(int) (int, bool) { return -1, true })
	c2 := NewClosure(d, func(int) (int, bool) { return -1, true })
	require.NoError(t, Block(d, c1, r, 0))

	err := Block(d, c2, r, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyBlocked)

	var me *MisuseError
	require.ErrorAs(t, err, &me)
	require.Error(t, reported)
	assert.Same(t, err, reported)
}

func TestBlock_DebugModePanicsWithMisuseError(t *testing.T) {
	d := &Driver{debug: true}
	r := NewGatherRendezvous()

	c1 := NewClosure(d, func(int) (int, bool) { return -1, true })
	c2 := NewClosure(d, func(int) (int, bool) { return -1, true })
	require.NoError(t, Block(d, c1, r, 0))

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		me, ok := rec.(*MisuseError)
		require.True(t, ok, "expected panic value to be *MisuseError, got %T", rec)
		assert.ErrorIs(t, me, ErrAlreadyBlocked)
	}()

	_ = Block(d, c2, r, 0)
	t.Fatal("expected Block to panic in debug mode")
}

func TestBlock_DebugModeIncludesRendezvousCreationSite(t *testing.T) {
	resetDebugState(t, true)

	d := &Driver{debug: true}
	r := NewGatherRendezvous()
	c1 := NewClosure(d, func(int) (int, bool) { return -1, true })
	c2 := NewClosure(d, func(int) (int, bool) { return -1, true })
	require.NoError(t, Block(d, c1, r, 0))

	defer func() {
		rec := recover()
		me, ok := rec.(*MisuseError)
		require.True(t, ok)
		assert.NotEmpty(t, me.Location)
		assert.Contains(t, me.Error(), me.Location)
	}()

	_ = Block(d, c2, r, 0)
	t.Fatal("expected Block to panic in debug mode")
}

func TestClosure_ActivateResumesAtStoredBlockID(t *testing.T) {
	d := newTestDriver(t)
	r := NewGatherRendezvous()

	var gotBlockID int
	c := NewClosure(d, func(blockID int) (int, bool) {
		gotBlockID = blockID
		return -1, true
	})
	require.NoError(t, Block(d, c, r, 17))

	h := MakeEvent0(r)
	h.Trigger()
	d.runUnblocked()

	assert.Equal(t, 17, gotBlockID)
}
