package logger

import (
	"fmt"
	"strings"

	"pointledger/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 按配置创建日志
//
// development 为 true 时输出控制台格式，默认级别 debug；否则输出 JSON，默认级别 info。
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.DisableStacktrace = true

	level, err := ParseLevel(cfg.Level, cfg.Development)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("创建日志失败: %w", err)
	}
	return logger, nil
}

// ParseLevel 解析日志级别，为空时按运行模式取默认值
func ParseLevel(level string, development bool) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		if development {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}

	var parsed zapcore.Level
	if err := parsed.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("日志级别不合法 %q: %w", level, err)
	}
	return parsed, nil
}
