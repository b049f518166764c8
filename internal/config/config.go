package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverMemory = "memory"
	StoreDriverMySQL  = "mysql"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StoreConfig 选择余额表和流水表的实现
// memory 模式下每次调用会随机等待 [LatencyMin, LatencyMax]，模拟外部存储的延迟
type StoreConfig struct {
	Driver     string        `mapstructure:"driver"`
	LatencyMin time.Duration `mapstructure:"latency_min"`
	LatencyMax time.Duration `mapstructure:"latency_max"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// DSN 产生连接字符串
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LockConfig 用户锁配置
// local: 进程内 FIFO 锁；redis: 跨实例的分布式锁（非 FIFO）
type LockConfig struct {
	Driver        string        `mapstructure:"driver"`
	Expiration    time.Duration `mapstructure:"expiration"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PointEvent string `mapstructure:"point_event"`
}

type BusinessConfig struct {
	MaxRetryCount     int           `mapstructure:"max_retry_count"`
	EventQueueSize    int           `mapstructure:"event_queue_size"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.latency_min", 0)
	v.SetDefault("store.latency_max", 0)
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.log_level", "error")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("lock.driver", LockDriverLocal)
	v.SetDefault("lock.expiration", 30*time.Second)
	v.SetDefault("lock.retry_interval", 100*time.Millisecond)
	v.SetDefault("lock.max_retries", 30)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic.point_event", "point_event")
	v.SetDefault("business.max_retry_count", 3)
	v.SetDefault("business.event_queue_size", 1024)
	v.SetDefault("business.reconcile_interval", time.Minute)
}

// LoadConfig 加载配置文件
// 先加载可选的 .env，再读取 yaml，环境变量 POINT_<SECTION>_<KEY> 可覆盖 yaml 中的值
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("POINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置的取值范围
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverMySQL:
	default:
		return fmt.Errorf("不支持的 store.driver: %q", c.Store.Driver)
	}
	switch c.Lock.Driver {
	case LockDriverLocal, LockDriverRedis:
	default:
		return fmt.Errorf("不支持的 lock.driver: %q", c.Lock.Driver)
	}
	if c.Store.LatencyMin < 0 || c.Store.LatencyMax < c.Store.LatencyMin {
		return fmt.Errorf("store 延迟区间不合法: [%v, %v]", c.Store.LatencyMin, c.Store.LatencyMax)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.enabled 为 true 时必须配置 kafka.brokers")
	}
	return nil
}
