package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера. Все поля опциональны:
// флаги командной строки имеют приоритет над конфигурацией, конфигурация —
// над переменными окружения.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

// StorageConfig настройки хранилища сущностей игроков.
type StorageConfig struct {
	// PlayerBackend бэкенд записей игроков: memory, mariadb или redis
	PlayerBackend string `yaml:"player_backend"`

	// MariaDSN строка подключения MariaDB (user:pass@tcp(host:port)/dbname)
	MariaDSN string `yaml:"maria_dsn"`

	// RedisAddr адрес Redis-сервера
	RedisAddr string `yaml:"redis_addr"`

	// FallbackToMemory использовать хранилище в памяти, если база недоступна
	FallbackToMemory bool `yaml:"fallback_to_memory"`
}

// GetPort возвращает порт сервера с приоритетом: конфиг -> env -> default.
func (s *ServerConfig) GetPort() int {
	return portWithEnvFallback(s.Port, "GEMWORLD_PORT", 8000)
}

// GetMetricsPort возвращает порт метрик Prometheus.
func (s *ServerConfig) GetMetricsPort() int {
	return portWithEnvFallback(s.MetricsPort, "GEMWORLD_METRICS_PORT", 2112)
}

func portWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML-файл конфигурации. Если path пуст, используется переменная
// окружения GEMWORLD_CONFIG; если и она пуста, возвращается nil, nil —
// работать с значениями по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GEMWORLD_CONFIG")
		if path == "" {
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mapConfigFileName имя файла конфигурации мира внутри его директории.
const mapConfigFileName = "map.yml"

// MapConfig конфигурация мира: имя генератора и сид. Лежит в директории мира
// рядом с файлами чанков.
type MapConfig struct {
	Generator string `yaml:"generator"`
	Seed      int64  `yaml:"seed"`
}

// LoadMapConfig читает конфигурацию мира из его директории. Второй результат
// false означает, что файла нет и мир создаётся впервые.
func LoadMapConfig(worldDirectory string) (*MapConfig, bool, error) {
	path := filepath.Join(worldDirectory, mapConfigFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения конфигурации мира %s: %w", path, err)
	}

	var cfg MapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("ошибка разбора конфигурации мира %s: %w", path, err)
	}

	return &cfg, true, nil
}

// SaveMapConfig записывает конфигурацию мира в его директорию.
func SaveMapConfig(worldDirectory string, cfg *MapConfig) error {
	if err := os.MkdirAll(worldDirectory, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию мира %s: %w", worldDirectory, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации конфигурации мира: %w", err)
	}

	path := filepath.Join(worldDirectory, mapConfigFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("ошибка записи конфигурации мира %s: %w", path, err)
	}

	return nil
}
