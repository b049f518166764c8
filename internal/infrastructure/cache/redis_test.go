package cache

import (
	"strconv"
	"testing"

	"pointledger/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	host := mr.Host()
	client, err := NewRedis(&config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	// 关闭之后 miniredis 的 Host() 不可用，用之前保存的地址
	mr.Close()
	_, err = NewRedis(&config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
