package integration

import (
	"testing"
	"time"

	"phoned/internal/host"
	"phoned/pkg/event"
	"phoned/pkg/testenv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settleTimeout = 2 * time.Second

func setupTest(t *testing.T, options map[string]map[string]string, plugins ...string) *testenv.TestEnv {
	t.Helper()

	env, err := testenv.NewTestEnv(options)
	require.NoError(t, err)
	t.Cleanup(env.Cleanup)

	require.NoError(t, env.Host.Load(plugins...))
	return env
}

// TestLoadAllPlugins loads every registered plugin and checks load order
func TestLoadAllPlugins(t *testing.T) {
	env := setupTest(t, nil)

	var names []string
	for _, p := range env.Host.Plugins() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"modem-template", "console", "phone-template", "n900"}, names)

	t.Run("lifecycle events reach every phone plugin", func(t *testing.T) {
		for _, typ := range []event.Type{event.Starting, event.Started, event.Suspend, event.Resume} {
			assert.NoError(t, env.Dispatch(typ), typ.String())
		}
		assert.Equal(t, 0, env.Console().Log().Len())
		assert.Empty(t, env.Writes.Writes())
	})

	t.Run("status is reported for plugins that provide it", func(t *testing.T) {
		for _, p := range env.Host.Plugins() {
			switch p.Name {
			case "console", "n900":
				assert.NotEmpty(t, p.Status, p.Name)
			default:
				assert.Empty(t, p.Status, p.Name)
			}
		}
	})
}

// TestUnload checks that nothing is delivered after unload
func TestUnload(t *testing.T) {
	env := setupTest(t, nil)

	env.Host.Unload()
	assert.False(t, env.Host.Loaded())
	assert.ErrorIs(t, env.Dispatch(event.Online), host.ErrNotLoaded)

	// A second unload is harmless
	assert.NotPanics(t, env.Host.Unload)
	assert.Empty(t, env.Writes.Writes())
}

// TestLoadUnknownPlugin leaves the host empty
func TestLoadUnknownPlugin(t *testing.T) {
	env, err := testenv.NewTestEnv(nil)
	require.NoError(t, err)
	defer env.Cleanup()

	err = env.Host.Load("console", "no-such-plugin")
	assert.ErrorIs(t, err, host.ErrUnknownPlugin)
	assert.False(t, env.Host.Loaded())
	assert.Empty(t, env.Host.Plugins())
}
