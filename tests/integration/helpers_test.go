package integration

import (
	"fmt"
	"net"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
	"github.com/SuperWhiteDev/BattleShip/internal/config"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
	"github.com/SuperWhiteDev/BattleShip/internal/server"
	"github.com/SuperWhiteDev/BattleShip/internal/testutil"
)

// startGameServer поднимает игровой сервер на случайном порту поверх общей
// базы. Сервер гасится в t.Cleanup вместе с тестом.
func (s *GameSuite) startGameServer(mutate func(*config.Server)) (*server.Server, string) {
	s.T().Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ReadTimeout = 5
	cfg.WriteTimeout = 5
	if mutate != nil {
		mutate(&cfg)
	}

	srv := server.New(cfg, s.store, nil)
	ln, addr := testutil.ListenTCP(s.T())
	ctx, cancel := testutil.ContextWithCancel(s.T())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()

	s.T().Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			s.T().Error("game server did not shut down in time")
		}
	})

	return srv, addr
}

// fleetGrid возвращает валидную расстановку: 1x4, 2x3, 3x2, 4x1.
func (s *GameSuite) fleetGrid() battle.Grid {
	s.T().Helper()

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
	s.Require().NoError(err)
	return g
}

// shipCells перечисляет все палубы расстановки в порядке обхода сетки.
func shipCells(g battle.Grid) [][2]uint8 {
	var cells [][2]uint8
	for r := range g {
		for c := range g[r] {
			if g[r][c] == battle.CellShip {
				cells = append(cells, [2]uint8{uint8(r), uint8(c)})
			}
		}
	}
	return cells
}

// gameData достаёт типизированную запись POST_DATA из пакета SESSION_DATA.
func (s *GameSuite) gameData(p protocol.Packet) *protocol.GameData {
	s.T().Helper()

	s.Require().Equal(protocol.CodeSessionData, p.Code, "expected SESSION_DATA, got %v", p.Code)
	sd, ok := p.Payload.(protocol.SessionDataPayload)
	s.Require().True(ok, "unexpected payload type %T", p.Payload)
	s.Require().NotNil(sd.Data, "POST_DATA record missing")
	return sd.Data
}

// registerRaw регистрирует имя без testing-хелперов, поэтому безопасен
// для вызова из параллельных горутин. Соединение закрывается на выходе.
func registerRaw(addr, name, uid, password string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	buf := make([]byte, protocol.MaxPacketSize)
	exchange := func(out, want protocol.Packet) error {
		if err := protocol.WritePacket(conn, out); err != nil {
			return err
		}
		got, err := protocol.ReadPacket(conn, buf)
		if err != nil {
			return err
		}
		if got.Code != want.Code || got.Payload != want.Payload {
			return fmt.Errorf("expected %+v, got %+v", want, got)
		}
		return nil
	}

	if err := exchange(protocol.NewCredentials(name, uid), protocol.NewStatus(protocol.StatusConnected)); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if err := exchange(protocol.NewPing(), protocol.NewStatus(protocol.StatusRegisterRequired)); err != nil {
		return fmt.Errorf("auth gate: %w", err)
	}
	if err := exchange(protocol.NewPassword(password), protocol.NewOK()); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	return nil
}

// startMatch регистрирует двух игроков и доводит их до фазы BATTLE.
// Второй игрок (инициатор пары) ходит первым.
func (s *GameSuite) startMatch(addr, first, second string) (a, b *testutil.GameClient) {
	s.T().Helper()

	a = testutil.Dial(s.T(), addr)
	a.Register(first, "uid-"+first, "secret")
	b = testutil.Dial(s.T(), addr)
	b.Register(second, "uid-"+second, "secret")

	s.Require().Equal(protocol.NewWaiting(""), a.FindSession())
	s.Require().Equal(protocol.NewSessionStarted(0), b.FindSession())
	s.Require().Equal(protocol.NewSessionStarted(0), a.AwaitSessionStarted())

	grid := s.fleetGrid()
	s.Require().Equal(protocol.NewComplete(), a.PostField(grid))
	s.Require().Equal(protocol.NewComplete(), b.PostField(grid))
	return a, b
}
