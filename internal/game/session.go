package game

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/battle"
	"github.com/SuperWhiteDev/BattleShip/internal/metrics"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// Phase is where a session stands in its lifecycle.
type Phase int32

const (
	PhaseSetup Phase = iota
	PhaseBattle
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseBattle:
		return "battle"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

const (
	// eventQueueSize bounds the per-session inbox. Posting blocks once
	// it fills, which backpressures the offending connection only.
	eventQueueSize = 100

	livenessInterval = time.Second
)

type event struct {
	player Player
	packet protocol.Packet
}

// playerBoards groups what the session tracks per player: the board the
// player placed ships on and the record of shots the player has fired.
type playerBoards struct {
	own  *battle.Field // nil until a valid layout arrives
	view *battle.Field
}

// Session is one running game. All game state below the phase marker is
// owned by the session task and must not be touched from outside it.
type Session struct {
	id      int32
	players []Player
	stats   StatsRecorder
	mets    *metrics.Metrics
	onStop  func(*Session)

	events chan event
	done   chan struct{}
	stop   sync.Once

	phase   atomic.Int32
	started atomic.Int64 // unix nano, set when battle begins

	// task-owned state
	boards      []playerBoards
	attackerIdx int
	defenderIdx int
	winner      Player
	pendingAck  map[string]struct{}
}

func newSession(id int32, players []Player, stats StatsRecorder, mets *metrics.Metrics, onStop func(*Session)) *Session {
	return &Session{
		id:      id,
		players: players,
		stats:   stats,
		mets:    mets,
		onStop:  onStop,
		events:  make(chan event, eventQueueSize),
		done:    make(chan struct{}),
		boards:  make([]playerBoards, len(players)),
		// First upload completes the setup of a two-player game with
		// players[0] on the attack.
		attackerIdx: 0,
		defenderIdx: 1,
		pendingAck:  make(map[string]struct{}),
	}
}

// ID returns the session identifier announced to the players.
func (s *Session) ID() int32 {
	return s.id
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// PlayerNames lists the participants in seating order.
func (s *Session) PlayerNames() []string {
	names := make([]string, len(s.players))
	for i, p := range s.players {
		names[i] = p.Name()
	}
	return names
}

// Post hands an in-session packet to the session task. It blocks while
// the queue is full and reports false once the session has stopped.
func (s *Session) Post(p Player, pkt protocol.Packet) bool {
	select {
	case s.events <- event{player: p, packet: pkt}:
		return true
	case <-s.done:
		return false
	}
}

// Stop terminates the session. Safe to call from any goroutine and more
// than once; the session task performs the actual teardown.
func (s *Session) Stop() {
	s.stop.Do(func() { close(s.done) })
}

// run drains the event queue until the session stops. A liveness tick
// replaces per-event connection polling: a session whose player dropped
// is torn down within a second even when nobody is sending.
func (s *Session) run(ctx context.Context) {
	slog.Info("session started", "session", s.id, "players", strings.Join(s.PlayerNames(), " vs "))

	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			s.handle(ctx, ev)
		case <-ticker.C:
			for _, p := range s.players {
				if !p.Connected() {
					slog.Info("player gone, closing session", "session", s.id, "player", p.Name())
					s.Stop()
				}
			}
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
			s.closeOut()
			return
		}
	}
}

// closeOut clears the players' session pointers and tells everyone
// still connected that the session is gone.
func (s *Session) closeOut() {
	for _, p := range s.players {
		p.SetSession(nil)
		if p.Connected() {
			p.Send(protocol.NewSessionClosed())
		}
	}
	if s.onStop != nil {
		s.onStop(s)
	}
	slog.Info("session closed", "session", s.id, "phase", s.Phase().String())
}

func (s *Session) handle(ctx context.Context, ev event) {
	sd, ok := ev.packet.Payload.(protocol.SessionDataPayload)
	idx := s.indexOf(ev.player)
	if !ok || idx < 0 {
		ev.player.Send(protocol.NewError(protocol.ErrCodeUnexpectedPacket))
		return
	}

	switch s.Phase() {
	case PhaseSetup:
		s.handleSetup(ev.player, idx, sd)
	case PhaseBattle:
		s.handleBattle(ctx, ev.player, idx, sd)
	case PhaseFinished:
		s.handleFinished(ev.player)
	}
}

func (s *Session) handleSetup(p Player, idx int, sd protocol.SessionDataPayload) {
	switch sd.Code {
	case protocol.GameGetData:
		if s.boards[idx].own == nil {
			p.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataBattleFieldRequired}))
			return
		}
		if waiting := s.unreadyNames(idx); len(waiting) > 0 {
			p.Send(protocol.NewWaiting(strings.Join(waiting, " ")))
			return
		}
		// Every board is in, the phase flips on the next event.
		p.Send(protocol.NewWaiting(""))

	case protocol.GamePostData:
		if sd.Data == nil || sd.Data.Type != protocol.DataBattleField || sd.Data.Field == nil {
			p.Send(protocol.NewError(protocol.ErrCodeUnexpectedPacket))
			return
		}
		grid := *sd.Data.Field
		if err := battle.ValidateLayout(grid); err != nil {
			slog.Debug("layout rejected", "session", s.id, "player", p.Name(), "reason", err)
			p.Send(protocol.NewErrorText(protocol.ErrCodeUncorrectPacket, err.Error()))
			return
		}
		s.boards[idx] = playerBoards{
			own:  battle.NewFieldFromGrid(grid),
			view: battle.NewField(),
		}
		p.Send(protocol.NewComplete())
		s.maybeStartBattle()

	default:
		p.Send(protocol.NewError(protocol.ErrCodeUnexpectedPacket))
	}
}

func (s *Session) maybeStartBattle() {
	for _, b := range s.boards {
		if b.own == nil {
			return
		}
	}
	s.phase.Store(int32(PhaseBattle))
	s.started.Store(time.Now().UnixNano())
	slog.Info("battle phase", "session", s.id, "attacker", s.players[s.attackerIdx].Name())
}

func (s *Session) handleBattle(ctx context.Context, p Player, idx int, sd protocol.SessionDataPayload) {
	switch sd.Code {
	case protocol.GameGetData:
		if idx != s.attackerIdx {
			p.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataNotYourTurn}))
			return
		}
		view := s.boards[idx].view.Grid()
		p.Send(protocol.NewPostData(protocol.GameData{
			Type:   protocol.DataBattleField,
			Field:  &view,
			Player: s.players[s.defenderIdx].Name(),
		}))

	case protocol.GamePostData:
		if sd.Data == nil || sd.Data.Type != protocol.DataCoordinate {
			p.Send(protocol.NewError(protocol.ErrCodeUnexpectedPacket))
			return
		}
		s.handleShot(ctx, p, idx, sd.Data.Coord)

	default:
		p.Send(protocol.NewError(protocol.ErrCodeUnexpectedPacket))
	}
}

func (s *Session) handleShot(ctx context.Context, p Player, idx int, coord protocol.Coordinate) {
	if idx != s.attackerIdx {
		p.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataNotYourTurn}))
		return
	}

	defender := s.boards[s.defenderIdx]
	state, err := defender.own.Shoot(int(coord.Row), int(coord.Col))
	if err != nil {
		p.Send(protocol.NewError(protocol.ErrCodeUncorrectPacket))
		return
	}

	s.boards[idx].view.MarkShot(int(coord.Row), int(coord.Col), state)
	s.recordShot(ctx, p.Name(), state)

	if defender.own.AllShipsDestroyed() {
		s.finishBattle(ctx, p, idx)
		return
	}

	switch state {
	case battle.ShootHit:
		// Attacker keeps the turn and sees the updated shot map.
		view := s.boards[idx].view.Grid()
		p.Send(protocol.NewPostData(protocol.GameData{
			Type:       protocol.DataShootState,
			ShootState: state,
			Field:      &view,
		}))
	case battle.ShootMiss:
		// Turn passes before replying, so the field sent back is the
		// shooter's own board for the defensive half of the round.
		s.attackerIdx = (s.attackerIdx + 1) % len(s.players)
		s.defenderIdx = (s.defenderIdx + 1) % len(s.players)
		own := s.boards[idx].own.Grid()
		p.Send(protocol.NewPostData(protocol.GameData{
			Type:       protocol.DataShootState,
			ShootState: state,
			Field:      &own,
		}))
	case battle.ShootAlreadyShot:
		p.Send(protocol.NewPostData(protocol.GameData{
			Type:       protocol.DataShootState,
			ShootState: state,
		}))
	}
}

// finishBattle flips to FINISHED, congratulates the winner immediately
// and leaves the losers to pick up the result on their next poll.
func (s *Session) finishBattle(ctx context.Context, winner Player, winnerIdx int) {
	s.winner = winner
	s.phase.Store(int32(PhaseFinished))

	duration := time.Duration(0)
	if startedAt := s.started.Load(); startedAt > 0 {
		duration = time.Since(time.Unix(0, startedAt))
	}

	for i, p := range s.players {
		if i == winnerIdx {
			continue
		}
		s.pendingAck[p.Name()] = struct{}{}
		s.recordResult(ctx, winner.Name(), p.Name(), duration)
	}

	s.mets.MatchFinished()
	slog.Info("battle won", "session", s.id, "winner", winner.Name(), "duration", duration)
	winner.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataResults, Winner: "you"}))
}

// handleFinished replies with the final result to whoever asks. Once
// every loser has been told, the session stops itself.
func (s *Session) handleFinished(p Player) {
	if _, pending := s.pendingAck[p.Name()]; pending {
		delete(s.pendingAck, p.Name())
		p.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataResults, Winner: s.winner.Name()}))
		if len(s.pendingAck) == 0 {
			s.Stop()
		}
		return
	}
	winner := "you"
	if p != s.winner {
		winner = s.winner.Name()
	}
	p.Send(protocol.NewPostData(protocol.GameData{Type: protocol.DataResults, Winner: winner}))
}

func (s *Session) indexOf(p Player) int {
	for i, other := range s.players {
		if other == p {
			return i
		}
	}
	return -1
}

// unreadyNames lists players other than idx whose board is still unset.
func (s *Session) unreadyNames(idx int) []string {
	var names []string
	for i, b := range s.boards {
		if i != idx && b.own == nil {
			names = append(names, s.players[i].Name())
		}
	}
	return names
}

func (s *Session) recordShot(ctx context.Context, name string, state battle.ShootState) {
	s.mets.ShotResolved(strings.ToLower(state.String()))
	if s.stats == nil || (state != battle.ShootHit && state != battle.ShootMiss) {
		return
	}
	if err := s.stats.RecordShot(ctx, name, state == battle.ShootHit); err != nil {
		slog.Error("failed to record shot", "player", name, "error", err)
	}
}

func (s *Session) recordResult(ctx context.Context, winner, loser string, duration time.Duration) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecordResult(ctx, winner, loser, duration); err != nil {
		slog.Error("failed to record result", "winner", winner, "loser", loser, "error", err)
	}
}
