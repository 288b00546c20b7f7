package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"DOCSTORE_DRIVER", "CHATSTORE_DRIVER", "HANDLER_TIMEOUT", "WORKER_CONCURRENCY", "CHAT_RETENTION", "ARCHIVE_SCHEDULE", "EVENTS_BINDING_KEYS"} {
		t.Setenv(key, "")
	}
	t.Setenv("DOCSTORE_DRIVER", DriverPostgres)
	t.Setenv("CHATSTORE_DRIVER", DriverRedis)
	t.Setenv("ARCHIVE_SCHEDULE", "0 0 * * *")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 5*24*time.Hour, cfg.ChatRetention)
	assert.Equal(t, "0 0 * * *", cfg.ArchiveSchedule)
	assert.Equal(t, "activity.events", cfg.EventsExchange)
	assert.Equal(t, []string{"activities.#", "users.#", "friendRequests.#", "chat-messages.#"}, cfg.EventsBindingKeys)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", DriverMemory)
	t.Setenv("CHATSTORE_DRIVER", DriverMemory)
	t.Setenv("HANDLER_TIMEOUT", "5s")
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("DEBUG_ROUTES", "true")
	t.Setenv("EVENTS_BINDING_KEYS", " activities.*, ,users.# ")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, 3, cfg.WorkerConcurrency)
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, []string{"activities.*", "users.#"}, cfg.EventsBindingKeys)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", DriverMemory)
	t.Setenv("CHATSTORE_DRIVER", DriverMemory)

	t.Setenv("WORKER_CONCURRENCY", "many")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "WORKER_CONCURRENCY")

	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "WORKER_CONCURRENCY")

	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("DOCSTORE_DRIVER", "sqlite")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DOCSTORE_DRIVER")
}
