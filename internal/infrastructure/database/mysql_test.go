package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("silent"))
	assert.Equal(t, logger.Warn, LogLevel("WARN"))
	assert.Equal(t, logger.Info, LogLevel("info"))
	assert.Equal(t, logger.Error, LogLevel("error"))
	assert.Equal(t, logger.Error, LogLevel(""))
}
