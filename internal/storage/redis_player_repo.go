package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой, если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей (0 — бессрочно)
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "gemworld:player:",
	}
}

// RedisPlayerRepo кеширующая реализация PlayerRepo поверх Redis: быстрый
// доступ к записям игроков с опциональным TTL. Может использоваться как
// основное хранилище небольших миров или как кеш перед MariaDB.
type RedisPlayerRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPlayerRepo создаёт репозиторий игроков поверх Redis.
func NewRedisPlayerRepo(config *RedisConfig) (*RedisPlayerRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	return &RedisPlayerRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (r *RedisPlayerRepo) key(clientID id.Id) string {
	return r.keyPrefix + clientID.Encode()
}

// LoadPlayer загружает сущность игрока из Redis.
func (r *RedisPlayerRepo) LoadPlayer(ctx context.Context, clientID id.Id) (id.Id, *game.Entity, bool, error) {
	data, err := r.client.Get(ctx, r.key(clientID)).Bytes()
	if err == redis.Nil {
		return id.Zero, nil, false, nil
	}
	if err != nil {
		return id.Zero, nil, false, fmt.Errorf("ошибка загрузки игрока %v из Redis: %w", clientID, err)
	}

	var record playerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return id.Zero, nil, false, fmt.Errorf("повреждённая запись игрока %v в Redis: %w", clientID, err)
	}

	entityID, entity, err := record.toEntity()
	if err != nil {
		return id.Zero, nil, false, err
	}
	return entityID, entity, true, nil
}

// SavePlayer сохраняет сущность игрока в Redis.
func (r *RedisPlayerRepo) SavePlayer(ctx context.Context, clientID, entityID id.Id, entity *game.Entity) error {
	data, err := json.Marshal(recordFromEntity(entityID, entity))
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи игрока %v: %w", clientID, err)
	}

	if err := r.client.Set(ctx, r.key(clientID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения игрока %v в Redis: %w", clientID, err)
	}
	return nil
}

// DeletePlayer удаляет запись игрока из Redis.
func (r *RedisPlayerRepo) DeletePlayer(ctx context.Context, clientID id.Id) error {
	if err := r.client.Del(ctx, r.key(clientID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления игрока %v из Redis: %w", clientID, err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (r *RedisPlayerRepo) Close() error {
	return r.client.Close()
}
