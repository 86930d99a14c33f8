package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func TestDefaultsApplyOrderPolicy(t *testing.T) {
	cfg := fromViper(newTestViper())

	assert.Equal(t, 5, cfg.Orders.MaxActivePerTeacher)
	assert.Equal(t, 72*time.Hour, cfg.Orders.StandardTurnaround)
	assert.Equal(t, 30*time.Minute, cfg.Orders.GracePeriod)
	assert.Equal(t, time.Minute, cfg.Orders.SweepInterval)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORDERS_MAX_ACTIVE_PER_TEACHER", "3")
	t.Setenv("ORDERS_GRACE_PERIOD", "45m")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("JWT_AUDIENCE", "web, mobile")

	cfg := fromViper(newTestViper())

	require.Equal(t, 3, cfg.Orders.MaxActivePerTeacher)
	assert.Equal(t, 45*time.Minute, cfg.Orders.GracePeriod)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, []string{"web", "mobile"}, cfg.JWT.Audience)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ORDERS_MAX_ACTIVE_PER_TEACHER", "0")
	t.Setenv("ORDERS_STANDARD_TURNAROUND", "soon")

	cfg := fromViper(newTestViper())

	assert.Equal(t, 5, cfg.Orders.MaxActivePerTeacher)
	assert.Equal(t, 72*time.Hour, cfg.Orders.StandardTurnaround)
}
