package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "ae:fetch:status:SPY:tdcalls", FetchStatusKey("spy", "tdcalls"))
	assert.Equal(t, "ae:lock:task:pricing:get_new:SPY", TaskLockKey("pricing:get_new", "spy"))
	assert.Equal(t, "ae:algo:result:abc", AlgoResultKey(" abc "))
	assert.Equal(t, "ae:archive:created:tradier:SPY:call", LatestCreatedKey("tradier", "spy", "call"))
	assert.Equal(t, "ae:price:close:SPY", LatestCloseKey("spy"))
	assert.Equal(t, "ae:fetch:status:SPY", FetchStatusKey("spy", " "))
}

func TestTTLSet(t *testing.T) {
	ttl := NewTTLSet(config.CacheTTL{Short: 30, Medium: 0, Long: -1})
	assert.Equal(t, 30*time.Second, ttl.Short)
	assert.Equal(t, 15*time.Minute, ttl.Medium)
	assert.Equal(t, time.Duration(0), ttl.Long)
	assert.Equal(t, 450*time.Second, TaskLockTTL(ttl))
	assert.Equal(t, time.Duration(0), AlgoResultTTL(ttl))
}
