package id

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Id представляет непрозрачный 128-битный идентификатор (клиента или сущности).
// Хранится в big-endian порядке; в логах и протоколе кодируется как base64 без
// символов выравнивания.
type Id [16]byte

// Zero нулевой идентификатор (не выдаётся генераторами).
var Zero Id

// GenerateRandom создаёт новый идентификатор из случайного UUID версии 4
// (122 случайных бита; биты версии и варианта фиксированы).
func GenerateRandom() Id {
	return Id(uuid.New())
}

// GenerateWithTimestamp создаёт идентификатор, старшие 6 байт которого — Unix
// timestamp в миллисекундах, а младшие 10 байт взяты из случайного UUID
// версии 4 (с его фиксированными битами версии и варианта). Такие идентификаторы
// сортируются по времени создания.
func GenerateWithTimestamp() Id {
	var result Id

	millis := uint64(time.Now().UnixMilli())
	binary.BigEndian.PutUint64(result[:8], millis<<16)

	random := uuid.New()
	copy(result[6:], random[6:])

	return result
}

// Encode кодирует идентификатор в base64 (стандартный алфавит, без выравнивания).
func (i Id) Encode() string {
	return base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(i[:])
}

// Decode восстанавливает идентификатор из его base64-представления.
func Decode(s string) (Id, error) {
	data, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("некорректная base64-строка идентификатора: %w", err)
	}
	if len(data) != len(Zero) {
		return Zero, fmt.Errorf("ожидалось %d байт идентификатора, получено %d", len(Zero), len(data))
	}

	var result Id
	copy(result[:], data)
	return result, nil
}

// String возвращает base64-представление вместе с hex-формой для отладки.
func (i Id) String() string {
	return fmt.Sprintf("%s (0x%032X)", i.Encode(), [16]byte(i))
}
