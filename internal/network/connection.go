package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/annel0/gemworld/internal/protocol"
)

// Ошибки транспортного уровня.
var (
	// ErrClosed соединение закрыто удалённой стороной с корректным
	// рукопожатием закрытия.
	ErrClosed = errors.New("соединение закрыто")

	// ErrResetWithoutClose соединение оборвано без рукопожатия закрытия.
	// Трактуется как обычное отключение клиента.
	ErrResetWithoutClose = errors.New("соединение оборвано без рукопожатия закрытия")

	// ErrMessageNotBinary получен недвоичный фрейм.
	ErrMessageNotBinary = errors.New("получен недвоичный фрейм")
)

const writeTimeout = 10 * time.Second

// Connection оборачивает WebSocket-соединение и упрощает обмен бинарными
// сообщениями протокола. Одно соединение обслуживается одной горутиной чтения;
// запись защищена мьютексом.
type Connection struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewConnection создаёт обёртку над установленным WebSocket-соединением.
func NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{ws: ws}
}

// RemoteAddr возвращает адрес удалённой стороны.
func (c *Connection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Send отправляет клиенту сообщение сервера одним двоичным фреймом.
func (c *Connection) Send(msg protocol.FromServer) error {
	return c.sendFrame(protocol.MarshalFromServer(msg))
}

// Receive ожидает следующее сообщение клиента. Возвращает ErrClosed или
// ErrResetWithoutClose при завершении соединения.
func (c *Connection) Receive() (protocol.ToServer, error) {
	data, err := c.receiveFrame()
	if err != nil {
		return nil, err
	}

	msg, err := protocol.UnmarshalToServer(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования сообщения клиента: %w", err)
	}
	return msg, nil
}

// SendToServer отправляет серверу сообщение клиента. Используется клиентской
// стороной протокола.
func (c *Connection) SendToServer(msg protocol.ToServer) error {
	return c.sendFrame(protocol.MarshalToServer(msg))
}

// ReceiveFromServer ожидает следующее сообщение сервера. Используется
// клиентской стороной протокола.
func (c *Connection) ReceiveFromServer() (protocol.FromServer, error) {
	data, err := c.receiveFrame()
	if err != nil {
		return nil, err
	}

	msg, err := protocol.UnmarshalFromServer(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования сообщения сервера: %w", err)
	}
	return msg, nil
}

func (c *Connection) sendFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("не удалось установить таймаут записи: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("ошибка записи фрейма: %w", err)
	}
	return nil
}

func (c *Connection) receiveFrame() ([]byte, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrClosed
		}
		if websocket.IsUnexpectedCloseError(err) {
			return nil, ErrResetWithoutClose
		}
		return nil, ErrResetWithoutClose
	}

	if messageType != websocket.BinaryMessage {
		return nil, ErrMessageNotBinary
	}
	return data, nil
}

// Close вежливо закрывает соединение: отправляет фрейм закрытия и закрывает
// сокет. Повторное закрытие безопасно.
func (c *Connection) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.ws.Close()
}
