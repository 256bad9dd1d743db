package tamer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDriverOptions_SeedsFromEnvironment(t *testing.T) {
	t.Setenv("TAMER_DRIVER", "poll")
	t.Setenv("TAMER_NOEPOLL", "1")
	t.Setenv("TAMER_DEBUG", "true")

	cfg, err := resolveDriverOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, "poll", cfg.backendName)
	assert.True(t, cfg.noepoll)
	assert.True(t, cfg.debug)
}

func TestResolveDriverOptions_OptionOverridesEnvironment(t *testing.T) {
	t.Setenv("TAMER_DRIVER", "epoll")

	cfg, err := resolveDriverOptions([]DriverOption{WithBackend("poll"), WithLoopForever(true)})
	require.NoError(t, err)
	assert.Equal(t, "poll", cfg.backendName)
	assert.True(t, cfg.loopForever)
}

func TestResolveDriverOptions_NilOptionIgnored(t *testing.T) {
	cfg, err := resolveDriverOptions([]DriverOption{nil, WithDebug(true)})
	require.NoError(t, err)
	assert.True(t, cfg.debug)
}

func TestEnvBool_ParsesAndFallsBack(t *testing.T) {
	t.Setenv("TAMER_TEST_BOOL_UNSET", "")
	os.Unsetenv("TAMER_TEST_BOOL_UNSET")
	assert.False(t, envBool("TAMER_TEST_BOOL_UNSET"))

	t.Setenv("TAMER_TEST_BOOL_TRUE", "1")
	assert.True(t, envBool("TAMER_TEST_BOOL_TRUE"))

	t.Setenv("TAMER_TEST_BOOL_GARBAGE", "yes-please")
	assert.True(t, envBool("TAMER_TEST_BOOL_GARBAGE"), "unparseable non-empty value falls back to true")
}

func TestWithErrorHandler_SetsHandler(t *testing.T) {
	called := false
	cfg, err := resolveDriverOptions([]DriverOption{WithErrorHandler(func(error) { called = true })})
	require.NoError(t, err)
	cfg.errorHandler(assert.AnError)
	assert.True(t, called)
}
