package testutil

import (
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// GameClient упрощает написание integration тестов для игрового сервера.
// Повторяет lock-step протокол референсного клиента: каждый запрос
// ожидает ровно один ответ, асинхронные пуши вычитываются через Flush.
type GameClient struct {
	t       testing.TB
	conn    net.Conn
	readBuf []byte
	timeout time.Duration
}

// Dial подключается к игровому серверу по указанному адресу.
// Использует t.Cleanup() для автоматического закрытия соединения.
func Dial(t testing.TB, addr string) *GameClient {
	t.Helper()

	// Retry dial: сервер в соседней горутине может ещё не слушать
	var conn net.Conn
	var err error
	for attempt := range 10 {
		conn, err = net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			break
		}
		if attempt < 9 {
			base := time.Duration(20<<min(attempt, 6)) * time.Millisecond
			jitter := time.Duration(rand.IntN(int(base/2)+1)) * time.Millisecond
			time.Sleep(base + jitter)
		}
	}
	if err != nil {
		t.Fatalf("dial game server: %v", err)
	}

	c := &GameClient{
		t:       t,
		conn:    conn,
		readBuf: make([]byte, protocol.MaxPacketSize),
		timeout: 5 * time.Second,
	}
	t.Cleanup(c.Close)
	return c
}

// Close закрывает соединение.
func (c *GameClient) Close() {
	_ = c.conn.Close()
}

// Send отправляет один пакет.
func (c *GameClient) Send(p protocol.Packet) {
	c.t.Helper()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("set write deadline: %v", err)
	}
	if err := protocol.WritePacket(c.conn, p); err != nil {
		c.t.Fatalf("write packet: %v", err)
	}
}

// Recv блокирующе читает один пакет.
func (c *GameClient) Recv() protocol.Packet {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("set read deadline: %v", err)
	}
	p, err := protocol.ReadPacket(c.conn, c.readBuf)
	if err != nil {
		c.t.Fatalf("read packet: %v", err)
	}
	return p
}

// TryRecv пытается прочитать пакет в течение d. Возвращает false если
// сервер ничего не прислал.
func (c *GameClient) TryRecv(d time.Duration) (protocol.Packet, bool) {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		c.t.Fatalf("set read deadline: %v", err)
	}
	p, err := protocol.ReadPacket(c.conn, c.readBuf)
	if err != nil {
		return protocol.Packet{}, false
	}
	return p, true
}

// SendRecv отправляет пакет и возвращает ответ сервера.
func (c *GameClient) SendRecv(p protocol.Packet) protocol.Packet {
	c.t.Helper()
	c.Send(p)
	return c.Recv()
}

// Handshake отправляет USERNAME_AND_ID и возвращает первый ответ сервера.
func (c *GameClient) Handshake(name, uid string) protocol.Packet {
	c.t.Helper()
	return c.SendRecv(protocol.NewCredentials(name, uid))
}

// Register проходит полный цикл регистрации нового имени:
// handshake → CONNECTED, пинг → REGISTER_REQUIRED, пароль → OK.
func (c *GameClient) Register(name, uid, password string) {
	c.t.Helper()

	resp := c.Handshake(name, uid)
	requirePacket(c.t, protocol.NewStatus(protocol.StatusConnected), resp)

	resp = c.SendRecv(protocol.NewPing())
	requirePacket(c.t, protocol.NewStatus(protocol.StatusRegisterRequired), resp)

	resp = c.SendRecv(protocol.NewPassword(password))
	requirePacket(c.t, protocol.NewOK(), resp)
}

// Authorize проходит вход существующим именем с паролем:
// handshake → CONNECTED, пинг → AUTHORIZATION_REQUIRED, пароль → OK.
func (c *GameClient) Authorize(name, uid, password string) {
	c.t.Helper()

	resp := c.Handshake(name, uid)
	requirePacket(c.t, protocol.NewStatus(protocol.StatusConnected), resp)

	resp = c.SendRecv(protocol.NewPing())
	requirePacket(c.t, protocol.NewStatus(protocol.StatusAuthorizationRequired), resp)

	resp = c.SendRecv(protocol.NewPassword(password))
	requirePacket(c.t, protocol.NewOK(), resp)
}

// FindSession отправляет FIND_NEW_SESSION и возвращает ответ
// (WAITING либо SESSION_STARTED).
func (c *GameClient) FindSession() protocol.Packet {
	c.t.Helper()
	return c.SendRecv(protocol.NewStatus(protocol.StatusFindNewSession))
}

// AwaitSessionStarted ждёт асинхронный пуш SESSION_STARTED.
func (c *GameClient) AwaitSessionStarted() protocol.Packet {
	c.t.Helper()

	p := c.Recv()
	if p.Code != protocol.CodeSessionData {
		c.t.Fatalf("expected SESSION_DATA, got %v", p.Code)
	}
	return p
}

// PostField загружает расстановку кораблей и возвращает ответ сервера.
func (c *GameClient) PostField(g battle.Grid) protocol.Packet {
	c.t.Helper()
	return c.SendRecv(protocol.NewPostData(protocol.GameData{
		Type:  protocol.DataBattleField,
		Field: &g,
	}))
}

// Shoot стреляет по клетке и возвращает ответ сервера.
func (c *GameClient) Shoot(row, col uint8) protocol.Packet {
	c.t.Helper()
	return c.SendRecv(protocol.NewPostData(protocol.GameData{
		Type:  protocol.DataCoordinate,
		Coord: protocol.Coordinate{Row: row, Col: col},
	}))
}

// GetData запрашивает состояние сессии.
func (c *GameClient) GetData() protocol.Packet {
	c.t.Helper()
	return c.SendRecv(protocol.NewGetData())
}

func requirePacket(t testing.TB, want, got protocol.Packet) {
	t.Helper()
	if want.Code != got.Code || want.Payload != got.Payload {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
