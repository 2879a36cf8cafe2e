package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/gemworld/internal/game"
	"github.com/annel0/gemworld/internal/id"
)

// MariaPlayerRepo реализует PlayerRepo поверх MariaDB/MySQL. Использует
// таблицу client_entities с ключом по base64-форме идентификатора клиента.
type MariaPlayerRepo struct {
	db *sql.DB
}

// NewMariaPlayerRepo создаёт репозиторий игроков для MariaDB и при
// необходимости создаёт таблицу.
//
// dsn — строка подключения вида user:pass@tcp(host:port)/dbname.
func NewMariaPlayerRepo(dsn string) (*MariaPlayerRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPlayerRepo{db: db}

	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создаёт таблицу client_entities, если она не существует.
func (r *MariaPlayerRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS client_entities (
			client_id         VARCHAR(32)  PRIMARY KEY,
			entity_id         VARCHAR(32)  NOT NULL,
			tile_x            INT          NOT NULL,
			tile_y            INT          NOT NULL,
			hair_style        INT UNSIGNED NOT NULL,
			clothing_colour   INT UNSIGNED NOT NULL,
			skin_colour       INT UNSIGNED NOT NULL,
			hair_colour       INT UNSIGNED NOT NULL,
			has_running_shoes BOOLEAN      NOT NULL DEFAULT FALSE,
			updated_at        TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			                  ON UPDATE    CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы client_entities: %w", err)
	}
	return nil
}

// LoadPlayer загружает сущность игрока по идентификатору клиента.
func (r *MariaPlayerRepo) LoadPlayer(ctx context.Context, clientID id.Id) (id.Id, *game.Entity, bool, error) {
	query := `
		SELECT entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, has_running_shoes
		FROM client_entities
		WHERE client_id = ?
	`

	var record playerRecord
	err := r.db.QueryRowContext(ctx, query, clientID.Encode()).Scan(
		&record.EntityID, &record.TileX, &record.TileY,
		&record.HairStyle, &record.ClothingColour, &record.SkinColour, &record.HairColour,
		&record.HasRunningShoes,
	)

	if err == sql.ErrNoRows {
		// Первый вход клиента
		return id.Zero, nil, false, nil
	}
	if err != nil {
		return id.Zero, nil, false, fmt.Errorf("ошибка загрузки игрока %v: %w", clientID, err)
	}

	entityID, entity, err := record.toEntity()
	if err != nil {
		return id.Zero, nil, false, fmt.Errorf("повреждённая запись игрока %v: %w", clientID, err)
	}
	return entityID, entity, true, nil
}

// SavePlayer сохраняет сущность игрока, обновляя существующую строку.
func (r *MariaPlayerRepo) SavePlayer(ctx context.Context, clientID, entityID id.Id, entity *game.Entity) error {
	record := recordFromEntity(entityID, entity)

	query := `
		INSERT INTO client_entities (
			client_id, entity_id, tile_x, tile_y, hair_style, clothing_colour, skin_colour, hair_colour, has_running_shoes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			tile_x = VALUES(tile_x),
			tile_y = VALUES(tile_y),
			hair_style = VALUES(hair_style),
			clothing_colour = VALUES(clothing_colour),
			skin_colour = VALUES(skin_colour),
			hair_colour = VALUES(hair_colour),
			has_running_shoes = VALUES(has_running_shoes)
	`

	_, err := r.db.ExecContext(ctx, query,
		clientID.Encode(), record.EntityID, record.TileX, record.TileY,
		record.HairStyle, record.ClothingColour, record.SkinColour, record.HairColour,
		record.HasRunningShoes,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения игрока %v: %w", clientID, err)
	}
	return nil
}

// DeletePlayer удаляет запись игрока.
func (r *MariaPlayerRepo) DeletePlayer(ctx context.Context, clientID id.Id) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM client_entities WHERE client_id = ?`, clientID.Encode())
	if err != nil {
		return fmt.Errorf("ошибка удаления игрока %v: %w", clientID, err)
	}
	return nil
}

// Close закрывает пул соединений с базой данных.
func (r *MariaPlayerRepo) Close() error {
	return r.db.Close()
}
