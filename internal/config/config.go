package config

import (
	"os"
	"strconv"
	"time"

	"vitalhub/internal/common/config"

	"github.com/joho/godotenv"
)

// Config 监护服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// HTTP/WebSocket 服务配置
	Server struct {
		Addr string // 监听地址，如 ":8080"

		// WebSocket 客户端出站队列配置
		WSQueueSize    int           // 每个连接的出站队列长度
		WSWriteTimeout time.Duration // 单帧写超时
		WSPongTimeout  time.Duration // pong 超时（超过视为死连接）
	}

	// 雷达接入配置
	Radar struct {
		DataTopic        string        // 雷达数据主题，如 "radar/+/data"
		QoS              byte          // MQTT QoS
		NetworkTimeout   time.Duration // 超过该时长无数据视为网络故障
		WatchdogInterval time.Duration // 故障巡检间隔
	}

	// 报警评估配置
	Alarm struct {
		// Redis 缓存配置
		Cache struct {
			RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "vital:room:"
			RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
			RealtimeTTL       int    // 实时数据 TTL（秒）
			StateKeyPrefix    string // 报警状态缓存键前缀，如 "alarm:state:"
		}

		// 评估默认值（个人未配置时使用，可被 alert_config 表覆盖）
		AlertPeriod           int // 连续违规样本抑制次数
		CriticalMarginPercent int // 超出绝对上下限该百分比视为一级报警
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	// .env 文件可选，不存在则只用环境变量
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitalhub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vitalhub")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Server.Addr = getEnv("SERVER_ADDR", ":8080")
	cfg.Server.WSQueueSize = getEnvInt("WS_QUEUE_SIZE", 64)
	cfg.Server.WSWriteTimeout = getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second)
	cfg.Server.WSPongTimeout = getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second)

	cfg.Radar.DataTopic = getEnv("RADAR_DATA_TOPIC", "radar/+/data")
	cfg.Radar.QoS = 1
	cfg.Radar.NetworkTimeout = getEnvDuration("RADAR_NETWORK_TIMEOUT", 30*time.Second)
	cfg.Radar.WatchdogInterval = getEnvDuration("RADAR_WATCHDOG_INTERVAL", 5*time.Second)

	cfg.Alarm.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "vital:room:")
	cfg.Alarm.Cache.RealtimeSuffix = ":realtime"
	cfg.Alarm.Cache.RealtimeTTL = getEnvInt("CACHE_REALTIME_TTL", 60)
	cfg.Alarm.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "alarm:state:")

	cfg.Alarm.AlertPeriod = getEnvInt("ALARM_ALERT_PERIOD", 3)
	cfg.Alarm.CriticalMarginPercent = getEnvInt("ALARM_CRITICAL_MARGIN", 20)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
