package integration

import (
	"path/filepath"
	"testing"

	"phoned/internal/plugins/console"
	"phoned/pkg/event"
	"phoned/pkg/testenv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_ConsoleCollectsNotifications checks that every notification
// becomes a row, in arrival order, with the matching icon
func TestScenario_ConsoleCollectsNotifications(t *testing.T) {
	env := setupTest(t, nil)

	t.Log("WHEN: Notifications of every kind arrive between other events")
	require.NoError(t, env.Notify(event.KindInfo, "Network", "Registered on home network"))
	require.NoError(t, env.Dispatch(event.KeyTone))
	require.NoError(t, env.Notify(event.KindWarning, "Battery", "Battery low"))
	require.NoError(t, env.Notify(event.KindError, "SIM", "SIM card rejected"))
	require.NoError(t, env.Notify(event.KindUnknown, "", ""))

	t.Log("THEN: The console holds one row per notification")
	rows := env.Console().Log().Rows()
	require.Len(t, rows, 4)

	assert.Equal(t, console.IconInfo, rows[0].Icon)
	assert.Equal(t, "Registered on home network", rows[0].Message)
	assert.Equal(t, console.IconWarning, rows[1].Icon)
	assert.Equal(t, console.IconError, rows[2].Icon)
	assert.Equal(t, "SIM", rows[2].Title)
	assert.Equal(t, console.IconQuestion, rows[3].Icon)
	assert.Empty(t, rows[3].Message)

	for _, row := range rows {
		assert.Equal(t, "09/03/2024 21:30:00", row.Display)
		assert.NotEmpty(t, row.ID)
	}
}

// TestScenario_ConsoleSettingsRaisesWindow checks the settings entry point
func TestScenario_ConsoleSettingsRaisesWindow(t *testing.T) {
	env := setupTest(t, nil, "console")
	window := env.Console().Window()

	t.Log("GIVEN: The user closed the console window")
	window.Close()
	require.NoError(t, env.Notify(event.KindInfo, "Call", "Missed call"))
	assert.False(t, window.Visible(), "new rows do not reopen the window")

	t.Log("WHEN: The host invokes the console settings")
	require.NoError(t, env.Host.Settings(console.Name))

	t.Log("THEN: The window is shown again with its rows intact")
	assert.True(t, window.Visible())
	assert.Equal(t, 1, window.Presented())
	assert.Equal(t, 1, env.Console().Log().Len())
}

// TestScenario_ConsoleHistorySurvivesRestart persists rows in SQLite and
// loads them again after the host restarts
func TestScenario_ConsoleHistorySurvivesRestart(t *testing.T) {
	options := map[string]map[string]string{
		console.Name: {console.OptionDatabase: filepath.Join(t.TempDir(), "console.db")},
	}

	first := setupTest(t, options, "console")
	require.NoError(t, first.Notify(event.KindWarning, "Signal", "No service"))
	require.NoError(t, first.Notify(event.KindInfo, "Signal", "Service restored"))
	before := first.Console().Log().Rows()
	first.Host.Unload()

	second, err := testenv.NewTestEnv(options)
	require.NoError(t, err)
	defer second.Cleanup()
	require.NoError(t, second.Host.Load("console"))

	after := second.Console().Log().Rows()
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Message, after[i].Message)
		assert.Equal(t, before[i].Icon, after[i].Icon)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}
	assert.Equal(t, true, second.Host.Plugins()[0].Status["persisted"])
}
