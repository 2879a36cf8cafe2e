// Package eventbus реализует широковещательную шину изменений игрового мира.
// Каждый подписчик получает собственное независимое представление потока с
// момента подписки; отставший подписчик теряет старые события и получает
// ошибку LaggedError, но никогда не блокирует издателей.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/gemworld/internal/world"
)

// DefaultCapacity ёмкость буфера подписчика по умолчанию.
const DefaultCapacity = 256

// LaggedError сообщает подписчику, что он отстал и пропустил события.
// Приём можно продолжать с последней доступной позиции.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("подписчик отстал, пропущено событий: %d", e.Skipped)
}

// Stats агрегированные метрики шины.
type Stats struct {
	Published   uint64
	Dropped     uint64
	Subscribers int
}

// Bus широковещательная шина с ограниченной ёмкостью. Издателей и подписчиков
// может быть сколько угодно; события каждого издателя доставляются каждому
// подписчику в порядке публикации.
type Bus struct {
	mu        sync.Mutex
	capacity  int
	receivers map[int]*Receiver
	nextID    int
	stats     Stats
}

// Receiver независимое представление потока событий для одного подписчика.
type Receiver struct {
	bus     *Bus
	recvID  int
	ch      chan world.Modification
	mu      sync.Mutex
	skipped uint64
	closed  bool
}

// NewBus создаёт шину с указанной ёмкостью буфера на подписчика.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity:  capacity,
		receivers: make(map[int]*Receiver),
	}
}

// Subscribe создаёт нового подписчика. Подписчик видит только события,
// опубликованные после подписки.
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()

	receiver := &Receiver{
		bus:    b,
		recvID: b.nextID,
		ch:     make(chan world.Modification, b.capacity),
	}
	b.receivers[b.nextID] = receiver
	b.nextID++

	return receiver
}

// Publish рассылает событие всем подписчикам. Медленный подписчик теряет
// самое старое событие из своего буфера; издатель не блокируется никогда.
func (b *Bus) Publish(mod world.Modification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Published++

	for _, receiver := range b.receivers {
		select {
		case receiver.ch <- mod:
			continue
		default:
		}

		// Буфер подписчика полон: вытесняем самое старое событие
		select {
		case <-receiver.ch:
			receiver.mu.Lock()
			receiver.skipped++
			receiver.mu.Unlock()
			b.stats.Dropped++
		default:
		}

		select {
		case receiver.ch <- mod:
		default:
			// Место так и не освободилось: событие потеряно для подписчика
			receiver.mu.Lock()
			receiver.skipped++
			receiver.mu.Unlock()
			b.stats.Dropped++
		}
	}
}

// Metrics возвращает текущие метрики шины.
func (b *Bus) Metrics() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.Subscribers = len(b.receivers)
	return s
}

// Recv блокируется до появления следующего события или отмены контекста. Если
// подписка уже закрыта, Recv сразу возвращает context.Canceled; уже ожидающий
// вызов закрытие подписки не прерывает. Если подписчик отстал и часть событий была вытеснена,
// первый же вызов возвращает LaggedError; следующий вызов продолжает приём.
func (r *Receiver) Recv(ctx context.Context) (world.Modification, error) {
	r.mu.Lock()
	if r.skipped > 0 {
		skipped := r.skipped
		r.skipped = 0
		r.mu.Unlock()
		return world.Modification{}, &LaggedError{Skipped: skipped}
	}
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return world.Modification{}, context.Canceled
	}

	select {
	case mod := <-r.ch:
		return mod, nil
	case <-ctx.Done():
		return world.Modification{}, ctx.Err()
	}
}

// Chan возвращает канал событий подписчика для использования в select.
// После пробуждения вызывающий обязан проверить TakeSkipped, чтобы заметить
// отставание.
func (r *Receiver) Chan() <-chan world.Modification {
	return r.ch
}

// TakeSkipped возвращает и обнуляет количество событий, пропущенных из-за
// отставания подписчика.
func (r *Receiver) TakeSkipped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	skipped := r.skipped
	r.skipped = 0
	return skipped
}

// TryRecv возвращает следующее событие без блокировки. Второй результат false
// означает, что буфер пуст.
func (r *Receiver) TryRecv() (world.Modification, bool) {
	select {
	case mod := <-r.ch:
		return mod, true
	default:
		return world.Modification{}, false
	}
}

// Unsubscribe отключает подписчика от шины.
func (r *Receiver) Unsubscribe() {
	r.bus.mu.Lock()
	delete(r.bus.receivers, r.recvID)
	r.bus.mu.Unlock()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
