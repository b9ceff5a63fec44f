// Package config loads the cache bootstrap settings from the environment
// and turns them into provider options.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/vhvplatform/go-cache/cache"
	"github.com/vhvplatform/go-cache/redis"
)

const (
	defaultHost = "localhost"
	defaultPort = 6379
)

// Settings holds the environment surface of the cache bootstrap.
type Settings struct {
	// NumConn is the number of backend connections: 0 means local-only
	// mode, 1 a single node, anything above a cluster.
	NumConn int `mapstructure:"CACHE_NUM_CONN"`

	// Hosts and Ports are comma-separated lists. Lists shorter than
	// NumConn are padded with localhost and 6379.
	Hosts string `mapstructure:"CACHE_HOST"`
	Ports string `mapstructure:"CACHE_PORT"`

	Password string `mapstructure:"CACHE_PASSWORD"`

	// ServiceSlug becomes the cache instance name and is required.
	ServiceSlug string `mapstructure:"SERVICE_SLUG" validate:"required"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads settings from environment variables and an optional .env file.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("CACHE_NUM_CONN", 0)
	v.SetDefault("CACHE_HOST", "")
	v.SetDefault("CACHE_PORT", "")
	v.SetDefault("CACHE_PASSWORD", "")
	v.SetDefault("SERVICE_SLUG", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env file is fine

	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid cache settings: %w", err)
	}
	return &s, nil
}

// ProviderOptions builds the cache options for these settings: local-only
// when NumConn is 0, a single node for 1, a cluster above that.
func (s *Settings) ProviderOptions() (cache.Options, error) {
	opts := cache.Options{
		Name:     s.ServiceSlug,
		Password: s.Password,
	}
	if s.NumConn <= 0 {
		return opts, nil
	}

	hosts := splitList(s.Hosts)
	ports, err := splitPorts(s.Ports)
	if err != nil {
		return cache.Options{}, err
	}

	endpoints := make([]redis.Endpoint, s.NumConn)
	for i := 0; i < s.NumConn; i++ {
		host, port := defaultHost, defaultPort
		if i < len(hosts) {
			host = hosts[i]
		}
		if i < len(ports) {
			port = ports[i]
		}
		endpoints[i] = redis.Endpoint{Host: host, Port: port}
	}

	if s.NumConn == 1 {
		opts.Single = &endpoints[0]
	} else {
		opts.Cluster = endpoints
	}
	return opts, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitPorts(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_PORT entry %q: %w", p, err)
		}
		out = append(out, port)
	}
	return out, nil
}
