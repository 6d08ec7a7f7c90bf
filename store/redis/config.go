package redis

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	goredis "github.com/redis/go-redis/v9"
)

// EnvConfig is the environment-driven shape for deployments that construct
// the client from config rather than injecting one.
type EnvConfig struct {
	Addr         string        `env:"CACHEGUARD_REDIS_ADDR" env-default:"localhost:6379"`
	Username     string        `env:"CACHEGUARD_REDIS_USERNAME"`
	Password     string        `env:"CACHEGUARD_REDIS_PASSWORD"`
	DB           int           `env:"CACHEGUARD_REDIS_DB" env-default:"0"`
	DialTimeout  time.Duration `env:"CACHEGUARD_REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `env:"CACHEGUARD_REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `env:"CACHEGUARD_REDIS_WRITE_TIMEOUT" env-default:"3s"`
	PoolSize     int           `env:"CACHEGUARD_REDIS_POOL_SIZE" env-default:"10"`
}

// LoadEnv reads EnvConfig from the process environment.
func LoadEnv() (EnvConfig, error) {
	var c EnvConfig
	err := cleanenv.ReadEnv(&c)
	return c, err
}

// Open builds a store that owns its client; Close tears the client down.
func Open(cfg EnvConfig) *Redis {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	return &Redis{rdb: client, closeClient: true}
}
