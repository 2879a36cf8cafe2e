package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/gemworld/internal/config"
	"github.com/annel0/gemworld/internal/eventbus"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/network"
	"github.com/annel0/gemworld/internal/storage"
	"github.com/annel0/gemworld/internal/world"
)

func main() {
	// === ФЛАГИ КОМАНДНОЙ СТРОКИ ===
	port := flag.Int("port", 0, "порт для входящих соединений (по умолчанию 8000)")
	worldDirectory := flag.String("world-directory", "world/", "директория данных игрового мира")
	logLevel := flag.String("log-level", "info", "уровень логирования (trace, debug, info, warn, error)")
	logToFile := flag.Bool("log-to-file", false, "дублировать логи в файл под logs/")
	configPath := flag.String("config", "", "путь к YAML-файлу конфигурации")
	flag.Parse()

	// === ЛОГИРОВАНИЕ ===
	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Init(level, *logToFile); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логирования: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	logging.Info("Запуск сервера GemWorld...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("Не удалось загрузить конфигурацию: %v", err)
		os.Exit(1)
	}

	var serverCfg config.ServerConfig
	var storageCfg config.StorageConfig
	if cfg != nil {
		serverCfg = cfg.Server
		storageCfg = cfg.Storage
	}

	// Флаг --port имеет приоритет над конфигурацией
	resolvedPort := serverCfg.GetPort()
	if *port > 0 {
		resolvedPort = *port
	}
	addr := fmt.Sprintf(":%d", resolvedPort)
	metricsAddr := fmt.Sprintf(":%d", serverCfg.GetMetricsPort())

	// === МИР ===
	mapCfg, found, err := config.LoadMapConfig(*worldDirectory)
	if err != nil {
		logging.Error("Не удалось прочитать конфигурацию мира: %v", err)
		os.Exit(1)
	}
	if !found {
		// Новый мир: генератор по умолчанию, сид из текущего времени
		mapCfg = &config.MapConfig{Generator: "default", Seed: time.Now().Unix()}
		if err := config.SaveMapConfig(*worldDirectory, mapCfg); err != nil {
			logging.Error("Не удалось сохранить конфигурацию мира: %v", err)
			os.Exit(1)
		}
		logging.Info("Создан новый мир: генератор %q, сид %d", mapCfg.Generator, mapCfg.Seed)
	}

	generator, known := world.GeneratorByName(mapCfg.Generator, mapCfg.Seed)
	if !known {
		// Неизвестный генератор фатален для данного мира
		logging.Error("Конфигурация мира указывает несуществующий генератор: %q", mapCfg.Generator)
		os.Exit(1)
	}

	chunkStorage, err := storage.NewChunkStorage(*worldDirectory)
	if err != nil {
		logging.Error("Не удалось инициализировать хранилище чанков: %v", err)
		os.Exit(1)
	}

	gameMap := world.NewMap(generator, chunkStorage)

	// === ХРАНИЛИЩЕ ИГРОКОВ ===
	playerRepo := newPlayerRepo(storageCfg)
	defer playerRepo.Close()

	// === ШИНА СОБЫТИЙ И МЕТРИКИ ===
	bus := eventbus.NewBus(eventbus.DefaultCapacity)
	network.ServeMetrics(metricsAddr, gameMap, bus)

	// === ЗАПУСК СЕРВЕРА ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := network.NewServer(addr, gameMap, chunkStorage, playerRepo, bus)

	logging.Info("Мир: директория %q, генератор %q, сид %d", *worldDirectory, mapCfg.Generator, mapCfg.Seed)

	if err := server.Run(ctx); err != nil {
		logging.Error("Сервер завершился с ошибкой: %v", err)
		os.Exit(1)
	}

	logging.Info("Сервер успешно остановлен")
}

// newPlayerRepo создаёт хранилище игроков по конфигурации. При недоступности
// базы и включённом fallback используется хранилище в памяти.
func newPlayerRepo(cfg config.StorageConfig) storage.PlayerRepo {
	switch cfg.PlayerBackend {
	case "mariadb":
		repo, err := storage.NewMariaPlayerRepo(cfg.MariaDSN)
		if err == nil {
			logging.Info("Хранилище игроков: MariaDB")
			return repo
		}
		logging.Warn("MariaDB недоступна: %v", err)
		if !cfg.FallbackToMemory {
			os.Exit(1)
		}

	case "redis":
		redisCfg := storage.DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			redisCfg.Addr = cfg.RedisAddr
		}
		repo, err := storage.NewRedisPlayerRepo(redisCfg)
		if err == nil {
			logging.Info("Хранилище игроков: Redis (%s)", redisCfg.Addr)
			return repo
		}
		logging.Warn("Redis недоступен: %v", err)
		if !cfg.FallbackToMemory {
			os.Exit(1)
		}
	}

	logging.Info("Хранилище игроков: память процесса")
	return storage.NewMemoryPlayerRepo()
}
