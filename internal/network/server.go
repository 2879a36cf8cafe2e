package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/gemworld/internal/eventbus"
	"github.com/annel0/gemworld/internal/logging"
	"github.com/annel0/gemworld/internal/storage"
	"github.com/annel0/gemworld/internal/world"
)

// Server принимает WebSocket-соединения и запускает по обработчику на каждое.
type Server struct {
	addr       string
	gameMap    *world.Map
	chunkStore world.ChunkStore
	playerRepo storage.PlayerRepo
	bus        *eventbus.Bus

	upgrader websocket.Upgrader

	mu        sync.Mutex
	boundAddr string

	wg sync.WaitGroup
}

// NewServer создаёт игровой сервер, слушающий указанный адрес.
func NewServer(addr string, gameMap *world.Map, chunkStore world.ChunkStore,
	playerRepo storage.PlayerRepo, bus *eventbus.Bus) *Server {

	return &Server{
		addr:       addr,
		gameMap:    gameMap,
		chunkStore: chunkStore,
		playerRepo: playerRepo,
		bus:        bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Игровой клиент может подключаться с любого origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// BoundAddr возвращает фактический адрес слушателя (пустая строка до запуска).
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// Run запускает приём соединений и блокируется до отмены контекста. Возвращает
// ошибку, если не удалось занять адрес.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("не удалось занять адрес %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	logging.Info("Сервер слушает адрес: %s", listener.Addr())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error("Не удалось выполнить WebSocket-рукопожатие с %s: %v", r.RemoteAddr, err)
			return
		}

		logging.Info("Входящее соединение: %s", r.RemoteAddr)
		logging.Debug("WebSocket-рукопожатие с %s выполнено успешно", r.RemoteAddr)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			HandleConnection(ctx, ws, s.gameMap, s.chunkStore, s.playerRepo, s.bus)
		}()
	})

	httpServer := &http.Server{Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		// Мягкое завершение: обработчики видят отмену контекста и выполняют
		// свои пути завершения
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)

		s.wg.Wait()
		return nil

	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
