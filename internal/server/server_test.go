package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
	"github.com/SuperWhiteDev/BattleShip/internal/config"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
	"github.com/SuperWhiteDev/BattleShip/internal/store"
	"github.com/SuperWhiteDev/BattleShip/internal/testutil"
)

func testConfig() config.Server {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ReadTimeout = 2
	cfg.WriteTimeout = 2
	return cfg
}

// startServer поднимает сервер на произвольном порту и гасит его при
// завершении теста.
func startServer(t *testing.T, cfg config.Server, st Store) (*Server, string) {
	t.Helper()

	srv := New(cfg, st, nil)
	ln, addr := testutil.ListenTCP(t)
	ctx, cancel := testutil.ContextWithCancel(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	return srv, addr
}

func fleetGrid(t *testing.T) battle.Grid {
	t.Helper()
	g, err := battle.ParseGrid([]string{
		"SSSS......",
		"..........",
		"SSS.SSS...",
		"..........",
		"SS.SS.SS..",
		"..........",
		"S.S.S.S...",
		"..........",
		"..........",
		"..........",
	})
	require.NoError(t, err)
	return g
}

func TestNewServer(t *testing.T) {
	srv := New(testConfig(), testutil.NewMemoryStore(), nil)
	require.NotNil(t, srv)

	assert.NotNil(t, srv.users)
	assert.NotNil(t, srv.registry)
	assert.NotNil(t, srv.mm)
	assert.NotNil(t, srv.handler)
	assert.NotNil(t, srv.readPool)

	// Addr до запуска не определён.
	assert.Nil(t, srv.Addr())
}

func TestServerRunBindsAndStops(t *testing.T) {
	srv := New(testConfig(), testutil.NewMemoryStore(), nil)

	ctx, cancel := testutil.ContextWithCancel(t)
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	// Run сам выбирает порт (cfg.Port = 0), адрес появляется после bind.
	testutil.WaitForCleanup(t, func() bool { return srv.Addr() != nil }, 3*time.Second)
	require.NoError(t, testutil.WaitForTCPReady(srv.Addr().String(), 3*time.Second))

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop on context cancel")
	}
}

func TestServerRegistersNewUser(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv, addr := startServer(t, testConfig(), st)

	c := testutil.Dial(t, addr)
	c.Register("alice", "device-1", "secret")

	resp := c.SendRecv(protocol.NewPing())
	assert.Equal(t, protocol.NewOK(), resp)
	assert.Equal(t, 1, srv.Users().Len())

	rec, err := st.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, store.CheckPassword(rec.PasswordHash, "secret"))
	assert.Equal(t, "device-1", rec.LastLoginID)
}

func TestServerReauthorizesKnownUser(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv, addr := startServer(t, testConfig(), st)

	first := testutil.Dial(t, addr)
	first.Register("alice", "device-1", "secret")
	first.Close()
	require.Eventually(t, func() bool { return srv.Users().Len() == 0 }, 3*time.Second, 10*time.Millisecond)

	// Новое устройство: сервер требует пароль.
	second := testutil.Dial(t, addr)
	second.Authorize("alice", "device-2", "secret")
	second.Close()
	require.Eventually(t, func() bool { return srv.Users().Len() == 0 }, 3*time.Second, 10*time.Millisecond)

	// Знакомое устройство: пароль пропускается.
	third := testutil.Dial(t, addr)
	resp := third.Handshake("alice", "device-2")
	require.Equal(t, protocol.NewStatus(protocol.StatusConnected), resp)
	resp = third.SendRecv(protocol.NewPing())
	assert.Equal(t, protocol.NewOK(), resp)
}

func TestServerRejectsDuplicateName(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv, addr := startServer(t, testConfig(), st)

	first := testutil.Dial(t, addr)
	first.Register("alice", "u1", "secret")

	second := testutil.Dial(t, addr)
	resp := second.Handshake("alice", "u2")
	assert.Equal(t, protocol.NewError(protocol.ErrCodeNameAlreadyInUse), resp)

	// Соединение закрыто, оригинал остался в таблице.
	_, ok := second.TryRecv(500 * time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, 1, srv.Users().Len())

	resp = first.SendRecv(protocol.NewPing())
	assert.Equal(t, protocol.NewOK(), resp)
}

func TestServerRejectsWhenFull(t *testing.T) {
	st := testutil.NewMemoryStore()
	cfg := testConfig()
	cfg.MaxUsers = 1
	_, addr := startServer(t, cfg, st)

	first := testutil.Dial(t, addr)
	first.Register("alice", "u1", "secret")

	// Отказ приходит сразу после accept, ещё до рукопожатия.
	second := testutil.Dial(t, addr)
	resp := second.Recv()
	assert.Equal(t, protocol.NewError(protocol.ErrCodeReachedUsersLimit), resp)
}

func TestServerPlaysFullMatch(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv, addr := startServer(t, testConfig(), st)

	alice := testutil.Dial(t, addr)
	alice.Register("alice", "u1", "secret")
	bob := testutil.Dial(t, addr)
	bob.Register("bob", "u2", "secret")

	// Алиса встаёт в очередь, Боб собирает пару.
	require.Equal(t, protocol.NewWaiting(""), alice.FindSession())
	require.Equal(t, protocol.NewSessionStarted(0), bob.FindSession())
	require.Equal(t, protocol.NewSessionStarted(0), alice.AwaitSessionStarted())

	grid := fleetGrid(t)
	require.Equal(t, protocol.NewComplete(), bob.PostField(grid))
	require.Equal(t, protocol.NewComplete(), alice.PostField(grid))

	// Боб запрашивал сессию — ему и первый ход.
	data := bob.GetData()
	require.Equal(t, protocol.CodeSessionData, data.Code)
	sd, ok := data.Payload.(protocol.SessionDataPayload)
	require.True(t, ok)
	require.NotNil(t, sd.Data)
	assert.Equal(t, protocol.DataBattleField, sd.Data.Type)
	assert.Equal(t, "alice", sd.Data.Player)

	other := alice.GetData()
	osd, ok := other.Payload.(protocol.SessionDataPayload)
	require.True(t, ok)
	require.NotNil(t, osd.Data)
	assert.Equal(t, protocol.DataNotYourTurn, osd.Data.Type)

	// Попадание оставляет ход за стрелком.
	shot := bob.Shoot(0, 0)
	ssd, ok := shot.Payload.(protocol.SessionDataPayload)
	require.True(t, ok)
	require.NotNil(t, ssd.Data)
	assert.Equal(t, protocol.DataShootState, ssd.Data.Type)
	assert.Equal(t, battle.ShootHit, ssd.Data.ShootState)
	require.NotNil(t, ssd.Data.Field)
	assert.Equal(t, battle.CellHit, ssd.Data.Field[0][0])

	// Промах передаёт ход, в ответе — собственная доска стрелка.
	shot = bob.Shoot(9, 9)
	ssd, ok = shot.Payload.(protocol.SessionDataPayload)
	require.True(t, ok)
	require.NotNil(t, ssd.Data)
	assert.Equal(t, battle.ShootMiss, ssd.Data.ShootState)
	require.NotNil(t, ssd.Data.Field)
	assert.Equal(t, battle.CellShip, ssd.Data.Field[0][0])

	turn := alice.GetData()
	tsd, ok := turn.Payload.(protocol.SessionDataPayload)
	require.True(t, ok)
	require.NotNil(t, tsd.Data)
	assert.Equal(t, protocol.DataBattleField, tsd.Data.Type)

	// Выход из сессии: OK и пуш SESSION_CLOSED идут из разных горутин,
	// порядок на сокете не фиксирован.
	alice.Send(protocol.NewStatus(protocol.StatusLeaveSession))
	got := []protocol.Packet{alice.Recv(), alice.Recv()}
	assert.Contains(t, got, protocol.NewOK())
	assert.Contains(t, got, protocol.NewSessionClosed())

	assert.Equal(t, protocol.NewSessionClosed(), bob.Recv())
	assert.Eventually(t, func() bool { return srv.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	// После закрытия сессии игровые пакеты отклоняются.
	resp := bob.GetData()
	assert.Equal(t, protocol.NewErrorEnum(protocol.ErrCodeUnexpectedPacket, protocol.ErrMsgPlayerNotInAnySession), resp)
}

func TestServerKicksBannedOnPing(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv, addr := startServer(t, testConfig(), st)

	c := testutil.Dial(t, addr)
	c.Register("alice", "u1", "secret")

	require.NoError(t, st.AddToBlacklist(context.Background(), "alice", "u1"))

	resp := c.SendRecv(protocol.NewPing())
	assert.Equal(t, protocol.NewStatus(protocol.StatusBanned), resp)

	_, ok := c.TryRecv(500 * time.Millisecond)
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return srv.Users().Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestServerGracefulShutdown(t *testing.T) {
	st := testutil.NewMemoryStore()
	srv := New(testConfig(), st, nil)
	ln, addr := testutil.ListenTCP(t)

	ctx, cancel := testutil.ContextWithCancel(t)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, ln) }()

	c := testutil.Dial(t, addr)
	c.Register("alice", "u1", "secret")

	cancel()

	assert.Equal(t, protocol.NewStatus(protocol.StatusDisconnected), c.Recv())

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, 0, srv.Users().Len())
}
