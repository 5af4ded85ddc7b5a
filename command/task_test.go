package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Items(t *testing.T) {
	require := require.New(t)

	empty := NewTask()
	require.Equal(1, empty.Len())
	items := empty.Items()
	require.Len(items, 1)
	m, ok := items[0].(*Marker)
	require.True(ok)
	require.False(m.IsInternal())

	task := NewTask().Add(ReadAnalogInput(0, 1), ReadAnalogInput(1, 1), Halt())
	require.Equal(4, task.Len())
	items = task.Items()
	require.Len(items, 4)
	for _, it := range items[:3] {
		_, isValue := it.(*Value)
		require.True(isValue)
	}
	_, isMarker := items[3].(*Marker)
	require.True(isMarker)
}

func TestTask_Listeners(t *testing.T) {
	assert := assert.New(t)

	var success, failed int
	l := &TaskFuncs{
		Success: func() { success++ },
		Failed:  func() { failed++ },
	}

	task := NewTask(l)
	task.AddListener(l)
	task.Add(Identify())

	marker, _ := task.Items()[1].(*Marker)
	assert.Empty(marker.Success())
	assert.Equal(1, success)

	assert.Empty(marker.Failure())
	assert.Equal(1, failed)

	task.RemoveListener(l)
	marker, _ = task.Items()[1].(*Marker)
	marker.Success()
	assert.Equal(1, success)
}

func TestMarker_ListenerPanicIsolated(t *testing.T) {
	var called bool
	m := NewTaskMarker(
		&TaskFuncs{Failed: func() { panic("boom") }},
		&TaskFuncs{Failed: func() { called = true }},
	)

	errs := m.Failure()
	assert.Len(t, errs, 1)
	assert.True(t, called)

	d := NewDelimiter()
	assert.True(t, d.IsInternal())
	assert.NotEqual(t, d.ID(), m.ID())
	assert.Empty(t, d.Success())
}
