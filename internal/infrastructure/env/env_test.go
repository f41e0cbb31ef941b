package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvServiceLoadsLayeredFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TP_A=base\nTP_B=base\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("TP_B=override\n"), 0o644))
	t.Setenv("APP_ENV", "test")
	t.Setenv("TP_A", "")
	t.Setenv("TP_B", "")
	os.Unsetenv("TP_A")
	os.Unsetenv("TP_B")

	svc := NewEnvService(dir)

	assert.Len(t, svc.Loaded, 2)
	assert.Equal(t, "base", svc.Get("TP_A"))
	assert.Equal(t, "override", svc.Get("TP_B"))
}

func TestTypedGetters(t *testing.T) {
	svc := &EnvService{}
	t.Setenv("TP_INT", "42")
	t.Setenv("TP_BAD_INT", "x")
	t.Setenv("TP_BOOL", "true")
	t.Setenv("TP_DUR", "1500ms")
	t.Setenv("TP_DUR_MS", "250")

	assert.Equal(t, 42, svc.GetInt("TP_INT", 1))
	assert.Equal(t, 1, svc.GetInt("TP_BAD_INT", 1))
	assert.True(t, svc.GetBool("TP_BOOL", false))
	assert.Equal(t, 1500*time.Millisecond, svc.GetDuration("TP_DUR", time.Second))
	assert.Equal(t, 250*time.Millisecond, svc.GetDuration("TP_DUR_MS", time.Second))
	assert.Equal(t, time.Second, svc.GetDuration("TP_MISSING", time.Second))
	assert.Equal(t, "fallback", svc.GetWithDefault("TP_MISSING", "fallback"))
}

func TestMustGetPanicsWhenMissing(t *testing.T) {
	svc := &EnvService{}
	assert.Panics(t, func() { svc.MustGet("TP_DEFINITELY_MISSING") })
}
