package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendOnly(t *testing.T) {
	log := NewLog()
	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Rows())

	log.Append(Row{ID: "1", Title: "first"})
	log.Append(Row{ID: "2", Title: "second"})

	rows := log.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Title)
	assert.Equal(t, "second", rows[1].Title)

	// Returned slices are copies
	rows[0].Title = "changed"
	assert.Equal(t, "first", log.Rows()[0].Title)

	assert.Equal(t, []Row{{ID: "2", Title: "second"}}, log.Since(1))
	assert.Empty(t, log.Since(2))
	assert.Empty(t, log.Since(10))
	assert.Len(t, log.Since(-1), 2)
}

func TestLog_Subscribe(t *testing.T) {
	log := NewLog()
	log.Append(Row{ID: "old"})

	var seen []string
	unsubscribe := log.Subscribe(func(r Row) { seen = append(seen, r.ID) })

	log.Append(Row{ID: "a"})
	log.Append(Row{ID: "b"})
	unsubscribe()
	log.Append(Row{ID: "c"})

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestLog_SubscribeWithBacklog(t *testing.T) {
	log := NewLog()
	log.Append(Row{ID: "old"})

	var seen []string
	backlog, unsubscribe := log.SubscribeWithBacklog(func(r Row) { seen = append(seen, r.ID) })
	defer unsubscribe()

	log.Append(Row{ID: "new"})

	require.Len(t, backlog, 1)
	assert.Equal(t, "old", backlog[0].ID)
	assert.Equal(t, []string{"new"}, seen)
}

func TestLog_Restore(t *testing.T) {
	log := NewLog()

	called := false
	log.Subscribe(func(Row) { called = true })
	log.restore([]Row{{ID: "1"}, {ID: "2"}})

	assert.Equal(t, 2, log.Len())
	assert.False(t, called, "restored rows are not new notifications")
}

func TestWindow(t *testing.T) {
	w := NewWindow()
	assert.True(t, w.Visible())
	assert.Equal(t, 0, w.Presented())

	w.Close()
	assert.False(t, w.Visible())

	raised := 0
	stop := w.OnPresent(func() { raised++ })

	w.Present()
	assert.True(t, w.Visible())
	assert.Equal(t, 1, w.Presented())
	assert.Equal(t, 1, raised)

	stop()
	w.Present()
	assert.Equal(t, 2, w.Presented())
	assert.Equal(t, 1, raised)
}
