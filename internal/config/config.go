// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载 configs/common.yaml + configs/{env}.yaml
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密码/密钥只存在 .env 中，YAML 不存储任何密码。
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"touropedia/internal/apiserver/server"
	"touropedia/internal/shared/mailer"
	"touropedia/internal/shared/objstore"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server ServerConfig   `yaml:"server"`
	Mongo  MongoConfig    `yaml:"mongo"`
	Redis  RedisConfig    `yaml:"redis"`
	MinIO  MinIOConfig    `yaml:"minio"`
	SMTP   mailer.Config  `yaml:"smtp"`
	Auth   AuthYAMLConfig `yaml:"auth"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitMax   int      `yaml:"rate_limit_max"`
	RateLimitWin   string   `yaml:"rate_limit_window"` // 例如 "15m"
}

type MongoConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Name string `yaml:"name"`
	URI  string `yaml:"uri"` // 直接指定 URI，优先于 host/port
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DB      int    `yaml:"db"`
}

// MinIOConfig MinIO 对象存储配置
// AccessKey/SecretKey 只从环境变量读取，不存储在 YAML 中
type MinIOConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	UseSSL   bool   `yaml:"use_ssl"`
	Bucket   string `yaml:"bucket"`
}

// AuthYAMLConfig 认证配置
// JWTSecret/AdminEmail/AdminPassword 只从环境变量读取
type AuthYAMLConfig struct {
	TokenTTL string `yaml:"token_ttl"` // 例如 "2160h"（90 天）
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env      Environment
	APIPort  string
	MongoURI string
	MongoDB  string
	RedisURL string

	Server server.Config
	MinIO  objstore.Config
	SMTP   mailer.Config

	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	mongoPassword := os.Getenv("MONGO_PASSWORD")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	rateWindow := 15 * time.Minute
	if d, err := time.ParseDuration(yamlCfg.Server.RateLimitWin); err == nil && d > 0 {
		rateWindow = d
	}
	tokenTTL := 90 * 24 * time.Hour
	if d, err := time.ParseDuration(yamlCfg.Auth.TokenTTL); err == nil && d > 0 {
		tokenTTL = d
	}

	cfg := &Config{
		Env:      env,
		APIPort:  getEnv("API_PORT", yamlCfg.Server.Port),
		MongoURI: buildMongoURI(yamlCfg.Mongo, mongoPassword),
		MongoDB:  yamlCfg.Mongo.Name,
		Server: server.Config{
			AllowedOrigins: yamlCfg.Server.AllowedOrigins,
			RateLimit: server.RateLimitConfig{
				Max:    yamlCfg.Server.RateLimitMax,
				Window: rateWindow,
			},
		},
		SMTP:          yamlCfg.SMTP,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenTTL:      tokenTTL,
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)

	if yamlCfg.Redis.Enabled {
		cfg.RedisURL = buildRedisURL(yamlCfg.Redis, redisPassword)
	}
	if yamlCfg.MinIO.Enabled {
		cfg.MinIO = objstore.Config{
			Endpoint:  yamlCfg.MinIO.Endpoint,
			AccessKey: os.Getenv("MINIO_ROOT_USER"),
			SecretKey: os.Getenv("MINIO_ROOT_PASSWORD"),
			UseSSL:    yamlCfg.MinIO.UseSSL,
			Bucket:    yamlCfg.MinIO.Bucket,
		}
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080", RateLimitMax: 100, RateLimitWin: "15m"},
		Mongo:  MongoConfig{Host: "localhost", Port: 27017, Name: "touropedia"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Auth:   AuthYAMLConfig{TokenTTL: "2160h"},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildMongoURI 构建 MongoDB 连接字符串
func buildMongoURI(m MongoConfig, password string) string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	if m.URI != "" {
		return m.URI
	}
	if m.User != "" && password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", m.User, password, m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

// buildRedisURL 构建 Redis 连接字符串
func buildRedisURL(r RedisConfig, password string) string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	if password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", password, r.Host, r.Port, r.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", r.Host, r.Port, r.DB)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s, Redis: %s, Port: %s}",
		c.Env, maskPassword(c.MongoURI), maskPassword(c.RedisURL), c.APIPort)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:@/]*:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
