package main

import (
	"time"
)

type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseWaitingForPlayers
	PhaseQuestionActive
	PhaseResultsShown
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseWaitingForPlayers:
		return "waiting-for-players"
	case PhaseQuestionActive:
		return "question-active"
	case PhaseResultsShown:
		return "results-shown"
	}
	return "unknown"
}

type inboundEvent struct {
	client *Client
	msg    ClientMessage
}

// StatusView is the read-only aggregate returned by /status.
type StatusView struct {
	Phase            string `json:"phase"`
	Started          bool   `json:"started"`
	QuestionActive   bool   `json:"question_active"`
	ResultsShown     bool   `json:"results_shown"`
	DisplayConnected bool   `json:"display_connected"`
	PlayerCount      int    `json:"player_count"`
	QuestionID       string `json:"question_id,omitempty"`
}

// Hub owns the session: world, phase, and role bindings. Every mutation
// happens on the Run goroutine, which serializes client events, the bee
// tick, and disconnects onto a single writer; nothing else touches state.
type Hub struct {
	cfg  *Config
	game *GameConfig

	world         *World
	phase         Phase
	questionIndex int // -1 until the first advance

	teacher *Client
	display *Client
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inbox    chan inboundEvent
	queries  chan chan StatusView
	quit     chan struct{}

	now func() time.Time
}

func newHub(cfg *Config, game *GameConfig) *Hub {
	return &Hub{
		cfg:           cfg,
		game:          game,
		world:         newWorld(game),
		phase:         PhaseNotStarted,
		questionIndex: -1,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unreg:         make(chan *Client),
		inbox:         make(chan inboundEvent, 64),
		queries:       make(chan chan StatusView),
		quit:          make(chan struct{}),
		now:           time.Now,
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

// Run is the single mutator loop.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.cfg.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unreg:
			h.handleDisconnect(c)
		case ev := <-h.inbox:
			h.handleEvent(ev.client, ev.msg)
		case reply := <-h.queries:
			reply <- h.status()
		case <-ticker.C:
			h.tickBee()
		}
	}
}

// Status answers the read-only query surface from the hub goroutine.
func (h *Hub) Status() StatusView {
	reply := make(chan StatusView, 1)
	h.queries <- reply
	return <-reply
}

func (h *Hub) status() StatusView {
	s := StatusView{
		Phase:            h.phase.String(),
		Started:          h.phase != PhaseNotStarted,
		QuestionActive:   h.phase == PhaseQuestionActive,
		ResultsShown:     h.phase == PhaseResultsShown,
		DisplayConnected: h.display != nil,
		PlayerCount:      h.world.playerCount(),
	}
	if h.phase == PhaseQuestionActive && h.questionIndex >= 0 {
		s.QuestionID = h.currentQuestion().ID
	}
	return s
}

func (h *Hub) handleEvent(c *Client, msg ClientMessage) {
	// Events queued before an eviction was processed are stale.
	if _, ok := h.clients[c]; !ok {
		return
	}

	switch msg.Type {
	case evTeacherConnect:
		h.bindTeacher(c)
	case evDisplayConnect:
		h.bindDisplay(c)
	case evStudentJoinRequest:
		h.answerJoinRequest(c)
	case evConfirmJoin:
		h.confirmJoin(c, msg.Name)
	case evPlayerMove:
		h.movePlayer(c, Direction(msg.Direction))
	case evTeacherStartGame:
		h.startGame(c)
	case evTeacherNextQ:
		h.nextQuestion(c)
	case evTeacherShowResults:
		h.showResults(c)
	default:
		// ignore unknown types
	}
}

// ---- delivery ----

func (h *Hub) send(c *Client, payload any) {
	if c == nil {
		return
	}
	// A queued event can outlive its connection; never write to a
	// closed send channel.
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.drop(c)
	}
}

// deliver routes an addressed message to its audience.
func (h *Hub) deliver(to Audience, sender *Client, payload any) {
	switch to {
	case ToEveryone:
		for client := range h.clients {
			h.send(client, payload)
		}
	case ToDisplay:
		h.send(h.display, payload)
	case ToTeacher:
		h.send(h.teacher, payload)
	case ToSender:
		h.send(sender, payload)
	}
}

// drop forcibly disconnects a client that can no longer keep up (or was
// evicted from a role). Cleanup runs inline so no stale role pointer or
// player survives; the later unreg from its read pump is then a no-op.
func (h *Hub) drop(c *Client) {
	c.close()
	h.handleDisconnect(c)
}

func (h *Hub) sendError(c *Client, reason, message string) {
	h.deliver(ToSender, c, ErrorMessage{
		Type:    "error",
		Reason:  reason,
		Message: message,
	})
}

// ---- connection lifecycle ----

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = true
	h.send(c, h.gameState())
}

// handleDisconnect is just another serialized event, never an interrupt.
func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	if c == h.teacher {
		h.teacher = nil
		logf(h.cfg, "GAMES: Teacher disconnected")
	}

	if c == h.display {
		h.display = nil
		logf(h.cfg, "GAMES: Display disconnected")

		// Several transitions are gated on the display flag, so its
		// change is broadcast immediately.
		h.deliver(ToEveryone, nil, h.gameState())
	}

	if p := h.world.removePlayer(c.id); p != nil {
		logf(h.cfg, "GAMES: Player %q left", p.Name)
		h.deliver(ToEveryone, nil, PlayerLeftMessage{
			Type: "player-left",
			ID:   p.ID,
			Name: p.Name,
		})
	}
}

// ---- role binding ----

// bindTeacher swaps the teacher role to c, evicting any prior holder,
// then pushes a full snapshot so a reconnect never sees a partial view.
func (h *Hub) bindTeacher(c *Client) {
	if h.teacher != nil && h.teacher != c {
		logf(h.cfg, "GAMES: Evicting previous teacher connection")
		h.drop(h.teacher)
	}
	h.teacher = c

	h.send(c, TeacherStateMessage{
		Type:  "teacher-state",
		State: h.gameState(),
	})
}

func (h *Hub) bindDisplay(c *Client) {
	if h.display != nil && h.display != c {
		logf(h.cfg, "GAMES: Evicting previous display connection")
		h.drop(h.display)
	}
	h.display = c

	status := DisplayStatusMessage{
		Type:    "display-status",
		State:   h.gameState(),
		Players: h.roster(),
	}
	if h.phase == PhaseQuestionActive && h.questionIndex >= 0 {
		q := viewQuestion(h.currentQuestion())
		status.Question = &q
		bee := h.world.bee.Pos
		status.Bee = &bee
	}
	h.send(c, status)

	h.deliver(ToEveryone, nil, h.gameState())
}

// ---- teacher transitions ----

// startGame: NotStarted -> WaitingForPlayers. Guards: sender holds the
// teacher role (silently ignored otherwise) and a display is bound.
func (h *Hub) startGame(c *Client) {
	if c != h.teacher || c == nil {
		return
	}
	if h.display == nil {
		h.sendError(c, reasonDisplayNotConnected, "Connect a display before starting the game.")
		return
	}
	if h.phase != PhaseNotStarted {
		h.sendError(c, reasonGameAlreadyStarted, "The game has already been started.")
		return
	}

	h.phase = PhaseWaitingForPlayers
	logf(h.cfg, "GAMES: Game started")

	h.deliver(ToEveryone, nil, SimpleMessage{
		Type:    "game-started",
		Message: "The game has started. Students may join.",
	})
	h.deliver(ToEveryone, nil, h.gameState())
}

// nextQuestion: WaitingForPlayers/ResultsShown -> QuestionActive.
// Advances the bank with wraparound and resets per-question state.
func (h *Hub) nextQuestion(c *Client) {
	if c != h.teacher || c == nil {
		return
	}
	if h.display == nil {
		h.sendError(c, reasonDisplayNotConnected, "Connect a display before advancing the question.")
		return
	}
	switch h.phase {
	case PhaseNotStarted:
		h.sendError(c, reasonGameNotStarted, "Start the game before advancing the question.")
		return
	case PhaseQuestionActive:
		h.sendError(c, reasonRoundInProgress, "Show results before advancing to the next question.")
		return
	}

	h.questionIndex = (h.questionIndex + 1) % len(h.game.Questions)
	h.phase = PhaseQuestionActive
	h.world.resetForQuestion()

	q := h.currentQuestion()
	logf(h.cfg, "GAMES: Question %q active (%d/%d)", q.ID, h.questionIndex+1, len(h.game.Questions))

	h.deliver(ToDisplay, nil, ShowQuestionMessage{
		Type:     "show-question",
		Question: viewQuestion(q),
		Players:  h.roster(),
	})
	h.deliver(ToEveryone, nil, QuestionStartedMessage{
		Type:  "question-started",
		Index: h.questionIndex,
		Total: len(h.game.Questions),
	})
}

// showResults: QuestionActive -> ResultsShown. A pure read of current
// state; scoring happened at answer time.
func (h *Hub) showResults(c *Client) {
	if c != h.teacher || c == nil {
		return
	}
	if h.display == nil {
		h.sendError(c, reasonDisplayNotConnected, "Connect a display before showing results.")
		return
	}
	if h.phase != PhaseQuestionActive {
		h.sendError(c, reasonNoActiveQuestion, "There is no active question to show results for.")
		return
	}

	results := ShowResultsMessage{
		Type:    "show-results",
		Results: h.computeResults(),
	}
	h.deliver(ToDisplay, nil, results)
	h.deliver(ToTeacher, nil, results)

	h.phase = PhaseResultsShown
	logf(h.cfg, "GAMES: Results shown for question %q", h.currentQuestion().ID)

	h.deliver(ToEveryone, nil, SimpleMessage{
		Type:    "results-shown",
		Message: "Round over. Joining and moving are allowed again.",
	})
}

const rankingSize = 10

func (h *Hub) computeResults() ResultsView {
	correct := h.currentQuestion().Correct

	rankings := make([]RankEntry, 0, rankingSize)
	for _, p := range h.world.topPlayers(rankingSize) {
		rankings = append(rankings, RankEntry{
			ID:        p.ID,
			Name:      p.Name,
			Score:     p.Score,
			Answer:    p.CurrentAnswer,
			IsCorrect: p.answered() && p.CurrentAnswer == correct,
		})
	}

	return ResultsView{
		Stats:       h.world.answerCounts(),
		Rankings:    rankings,
		Correct:     correct,
		PlayerCount: h.world.playerCount(),
	}
}

// ---- join protocol ----

// answerJoinRequest is step one of the handshake; no side effects.
func (h *Hub) answerJoinRequest(c *Client) {
	switch h.phase {
	case PhaseNotStarted:
		h.deliver(ToSender, c, SimpleMessage{
			Type:    "game-not-started",
			Message: "The game has not started yet. Try again shortly.",
		})
	case PhaseQuestionActive:
		h.deliver(ToSender, c, SimpleMessage{
			Type:    "wait-for-round",
			Message: "A question is in progress. You can join when the round ends.",
		})
	default:
		h.deliver(ToSender, c, SimpleMessage{
			Type:    "can-join",
			Message: "Pick a name to join.",
		})
	}
}

// confirmJoin is step two: creates (or replaces) the sender's player.
func (h *Hub) confirmJoin(c *Client, rawName string) {
	switch h.phase {
	case PhaseNotStarted:
		h.deliver(ToSender, c, JoinFailedMessage{
			Type:    "join-failed",
			Reason:  reasonGameNotStarted,
			Message: "The game has not started yet.",
		})
		return
	case PhaseQuestionActive:
		h.deliver(ToSender, c, JoinFailedMessage{
			Type:    "join-failed",
			Reason:  reasonRoundInProgress,
			Message: "A question is in progress. Wait for the round to end.",
		})
		return
	}

	p := h.world.addPlayer(c.id, rawName)
	logf(h.cfg, "GAMES: Player %q joined", p.Name)

	h.deliver(ToEveryone, nil, PlayerJoinedMessage{
		Type:   "player-joined",
		Player: snapshotPlayer(p),
	})
	h.deliver(ToSender, c, JoinSuccessMessage{
		Type:   "join-success",
		Player: snapshotPlayer(p),
		State:  h.gameState(),
	})
}

// ---- movement & answer capture ----

func (h *Hub) movePlayer(c *Client, dir Direction) {
	p := h.world.player(c.id)
	if p == nil {
		return
	}

	allowed := h.phase == PhaseWaitingForPlayers ||
		(h.phase == PhaseQuestionActive && !p.answered())
	if !allowed {
		return
	}

	now := h.now()
	if now.Sub(p.LastMoveAt) < h.cfg.moveThrottle {
		return
	}

	from, to, ok := h.world.move(p, dir)
	if !ok {
		return
	}
	p.LastMoveAt = now

	answer := ""
	if h.phase == PhaseQuestionActive {
		if z := h.world.zoneAt(to); z != nil {
			correct := z.Letter == h.currentQuestion().Correct
			if h.world.recordAnswer(p, z.Letter, correct, now) {
				answer = z.Letter
				logf(h.cfg, "GAMES: Player %q answered %q", p.Name, z.Letter)

				h.deliver(ToTeacher, nil, PlayerAnsweredMessage{
					Type:   "player-answered",
					ID:     p.ID,
					Name:   p.Name,
					Letter: z.Letter,
				})
			}
		}
	}

	h.deliver(ToEveryone, nil, PlayerMovedMessage{
		Type:   "player-moved",
		ID:     p.ID,
		From:   from,
		To:     to,
		Answer: answer,
	})
}

// ---- snapshots ----

func (h *Hub) currentQuestion() Question {
	return h.game.question(h.questionIndex)
}

func (h *Hub) gameState() GameStateMessage {
	return GameStateMessage{
		Type:             "game-state",
		Phase:            h.phase.String(),
		Started:          h.phase != PhaseNotStarted,
		QuestionActive:   h.phase == PhaseQuestionActive,
		ResultsShown:     h.phase == PhaseResultsShown,
		DisplayConnected: h.display != nil,
		PlayerCount:      h.world.playerCount(),
	}
}

func (h *Hub) roster() []PlayerSnapshot {
	players := make([]PlayerSnapshot, 0, len(h.world.order))
	for _, id := range h.world.order {
		players = append(players, snapshotPlayer(h.world.players[id]))
	}
	return players
}
