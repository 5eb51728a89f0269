package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// RequestHandler превращает входящий пакет в ответ. Нулевой пакет
// (code UNDEFINED) означает "ничего не отправлять" — ответ придёт
// асинхронно (например, от задачи сессии). false закрывает соединение
// после отправки ответа.
type RequestHandler func(protocol.Packet) (protocol.Packet, bool)

// Connection owns one client socket. Reads are serialized by the
// connection task in Handle; writes may come from that task, the
// session task or an admin command, so Send is guarded by a mutex.
type Connection struct {
	conn net.Conn
	ip   string

	readTimeout  time.Duration
	writeTimeout time.Duration
	readPool     *BytePool

	writeMu sync.Mutex

	closed       atomic.Bool
	disconnect   sync.Once
	onDisconnect func()
}

// NewConnection wraps an accepted socket.
func NewConnection(conn net.Conn, readTimeout, writeTimeout time.Duration, readPool *BytePool) *Connection {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	return &Connection{
		conn:         conn,
		ip:           host,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		readPool:     readPool,
	}
}

// IP returns the client's remote IP address.
func (c *Connection) IP() string {
	return c.ip
}

// OnDisconnect registers the teardown hook. It runs exactly once no
// matter how many paths lead to Disconnect. Must be set before Handle.
func (c *Connection) OnDisconnect(fn func()) {
	c.onDisconnect = fn
}

// Connected reports whether the socket is still open.
func (c *Connection) Connected() bool {
	return !c.closed.Load()
}

// Send writes one packet. Reports false when the connection is closed
// or the write fails; a failed write closes nothing by itself, the read
// side notices on its next timeout.
func (c *Connection) Send(p protocol.Packet) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return false
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return false
	}
	if err := protocol.WritePacket(c.conn, p); err != nil {
		slog.Debug("write failed", "client", c.ip, "error", err)
		return false
	}
	return true
}

// Get blocks for the next packet. Transport failures and timeouts map
// to an UNDEFINED packet, which callers treat as end of stream.
func (c *Connection) Get() protocol.Packet {
	if c.closed.Load() {
		return protocol.Packet{}
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return protocol.Packet{}
	}

	buf := c.readPool.Get(protocol.MaxPacketSize)
	defer c.readPool.Put(buf)

	p, err := protocol.ReadPacket(c.conn, buf)
	if err != nil {
		return protocol.Packet{}
	}
	return p
}

// Disconnect closes the socket and fires the teardown hook. Safe to
// call from any goroutine and more than once.
func (c *Connection) Disconnect() {
	c.disconnect.Do(func() {
		c.closed.Store(true)
		if err := c.conn.Close(); err != nil {
			slog.Debug("close failed", "client", c.ip, "error", err)
		}
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
	})
}

// Handle reads packets until the stream ends or the handler closes the
// connection, then tears it down.
func (c *Connection) Handle(handler RequestHandler) {
	defer c.Disconnect()

	for {
		p := c.Get()
		if p.Code == protocol.CodeUndefined {
			return
		}

		resp, keepOpen := handler(p)
		if resp.Code != protocol.CodeUndefined {
			c.Send(resp)
		}
		if !keepOpen {
			return
		}
	}
}
