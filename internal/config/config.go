package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server      ServerConfig            `mapstructure:"server"`      // 服务器配置
	Postgres    PostgresConfig          `mapstructure:"postgres"`    // PostgreSQL配置
	Sources     map[string]SourceConfig `mapstructure:"sources"`     // 多赛事源独立配置
	Dedup       DedupConfig             `mapstructure:"dedup"`       // 跨源去重配置
	Aggregation AggregationConfig       `mapstructure:"aggregation"` // 元游戏聚合配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// SourceConfig 单个赛事源的独立配置（每个源一个抓取器实例，互不共享限流状态）
type SourceConfig struct {
	BaseURL            string `mapstructure:"base_url"`              // 站点基础地址
	Timeout            int    `mapstructure:"timeout"`               // 请求超时（秒）
	MaxRetries         int    `mapstructure:"max_retries"`           // 可重试错误的重试次数
	RetryBaseDelayMs   int    `mapstructure:"retry_base_delay_ms"`   // 退避基础延迟（毫秒），实际延迟 = base × 2^attempt
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"` // 60秒滚动窗口内的请求上限
	MaxConcurrent      int    `mapstructure:"max_concurrent"`        // 同时在途请求上限
	Proxy              string `mapstructure:"proxy"`                 // 代理地址
	UserAgent          string `mapstructure:"user_agent"`            // 请求UA
	IsEnabled          bool   `mapstructure:"is_enabled"`            // 是否启用
}

// DedupConfig 跨源同赛事判定配置（规范化名称+城市+日期窗口，见DESIGN.md）
type DedupConfig struct {
	DateWindowDays int `mapstructure:"date_window_days"` // 日期容差窗口（天）
}

// AggregationConfig 元游戏聚合配置（产品调参常量，不写死在代码里）
type AggregationConfig struct {
	MinTournaments      int     `mapstructure:"min_tournaments"`      // 卡组入榜所需的最少不同赛事数
	DivergenceThreshold float64 `mapstructure:"divergence_threshold"` // 区域分歧信号阈值（占比差）
	TrendStableBand     float64 `mapstructure:"trend_stable_band"`    // 趋势判定为stable的占比差上限
	TierS               float64 `mapstructure:"tier_s"`               // S级门槛（严格大于）
	TierA               float64 `mapstructure:"tier_a"`               // A级门槛
	TierB               float64 `mapstructure:"tier_b"`               // B级门槛
	TierC               float64 `mapstructure:"tier_c"`               // C级门槛
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)

	// 4. 调参项兜底默认值
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	for name, src := range cfg.Sources {
		if v := os.Getenv(fmt.Sprintf("SOURCE_%s_PROXY", envKey(name))); v != "" {
			src.Proxy = v
			cfg.Sources[name] = src
		}
	}
}

func envKey(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// ApplyDefaults 未配置的调参项使用产品默认值（默认值来源见DESIGN.md）
func ApplyDefaults(cfg *Config) {
	if cfg.Dedup.DateWindowDays <= 0 {
		cfg.Dedup.DateWindowDays = 1
	}
	if cfg.Aggregation.MinTournaments <= 0 {
		cfg.Aggregation.MinTournaments = 3
	}
	if cfg.Aggregation.DivergenceThreshold <= 0 {
		cfg.Aggregation.DivergenceThreshold = 0.05
	}
	if cfg.Aggregation.TrendStableBand <= 0 {
		cfg.Aggregation.TrendStableBand = 0.005
	}
	if cfg.Aggregation.TierS <= 0 {
		cfg.Aggregation.TierS = 0.15
	}
	if cfg.Aggregation.TierA <= 0 {
		cfg.Aggregation.TierA = 0.08
	}
	if cfg.Aggregation.TierB <= 0 {
		cfg.Aggregation.TierB = 0.03
	}
	if cfg.Aggregation.TierC <= 0 {
		cfg.Aggregation.TierC = 0.01
	}
	for name, src := range cfg.Sources {
		if src.Timeout <= 0 {
			src.Timeout = 20
		}
		if src.MaxRetries <= 0 {
			src.MaxRetries = 3
		}
		if src.RetryBaseDelayMs <= 0 {
			src.RetryBaseDelayMs = 500
		}
		if src.RateLimitPerMinute <= 0 {
			src.RateLimitPerMinute = 30
		}
		if src.MaxConcurrent <= 0 {
			src.MaxConcurrent = 4
		}
		cfg.Sources[name] = src
	}
}
