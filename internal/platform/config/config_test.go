package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 3*time.Second, cfg.Store.BindTimeout)
	assert.Equal(t, 40, cfg.Eligibility.MedicalCheckAge)
	assert.Equal(t, 3, cfg.Identify.MinFragmentLen)
	assert.Empty(t, cfg.Queue.Path)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHECKIN_STORE", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://checkin@localhost/checkin")
	t.Setenv("CHECKIN_KAFKA_BROKERS", "k1:9092, k2:9092,k1:9092")
	t.Setenv("CHECKIN_TERMINAL_ID", "gate-b")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, "gate-b", cfg.Terminal.ID)
}

func TestFromEnvRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"CHECKIN_STORE": "postgres"},
		"redis without url":    {"CHECKIN_STORE": "redis"},
		"unknown backend":      {"CHECKIN_STORE": "etcd"},
		"bad duration":         {"CHECKIN_BIND_TIMEOUT": "soon"},
		"zero medical age":     {"CHECKIN_MEDICAL_CHECK_AGE": "0"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
