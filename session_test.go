package main

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time {
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.t = f.t.Add(d)
}

// newTestHub builds a hub over the deterministic test game; the bee
// ticker is parked at an hour so it never fires on its own.
func newTestHub(t *testing.T) (*Hub, *fakeClock) {
	t.Helper()

	cfg := &Config{
		moveThrottle: 50 * time.Millisecond,
		tickInterval: time.Hour,
	}
	h := newHub(cfg, testGame())

	clock := &fakeClock{t: time.Unix(1000, 0)}
	h.now = clock.now

	return h, clock
}

// connect registers a fake client; tests drive the hub's handlers
// directly, which is equivalent to the Run loop serializing them.
func connect(h *Hub, id string) *Client {
	c := &Client{
		id:   id,
		send: make(chan any, 64),
	}
	h.handleRegister(c)
	return c
}

func drain(c *Client) []any {
	var out []any
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func drainAll(h *Hub) {
	for c := range h.clients {
		drain(c)
	}
}

func findMsg[T any](msgs []any) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// startedHub returns a hub already in WaitingForPlayers with bound
// teacher and display.
func startedHub(t *testing.T) (*Hub, *fakeClock, *Client, *Client) {
	t.Helper()

	h, clock := newTestHub(t)
	teacher := connect(h, "teacher")
	display := connect(h, "display")
	h.handleEvent(teacher, ClientMessage{Type: evTeacherConnect})
	h.handleEvent(display, ClientMessage{Type: evDisplayConnect})
	h.handleEvent(teacher, ClientMessage{Type: evTeacherStartGame})

	if h.phase != PhaseWaitingForPlayers {
		t.Fatalf("setup: phase = %s, want waiting-for-players", h.phase)
	}
	drainAll(h)

	return h, clock, teacher, display
}

func TestStartGameRequiresDisplay(t *testing.T) {
	h, _ := newTestHub(t)
	teacher := connect(h, "teacher")
	h.handleEvent(teacher, ClientMessage{Type: evTeacherConnect})
	drain(teacher)

	h.handleEvent(teacher, ClientMessage{Type: evTeacherStartGame})

	errMsg, ok := findMsg[ErrorMessage](drain(teacher))
	if !ok {
		t.Fatalf("expected error message to sender")
	}
	if errMsg.Reason != reasonDisplayNotConnected {
		t.Fatalf("reason = %q, want %q", errMsg.Reason, reasonDisplayNotConnected)
	}
	if h.phase != PhaseNotStarted {
		t.Fatalf("phase = %s, state must be unchanged", h.phase)
	}
}

func TestTeacherEventsFromStrangerSilentlyIgnored(t *testing.T) {
	h, _, _, _ := startedHub(t)
	stranger := connect(h, "stranger")
	drain(stranger)

	h.handleEvent(stranger, ClientMessage{Type: evTeacherNextQ})

	if msgs := drain(stranger); len(msgs) != 0 {
		t.Fatalf("stranger received %d messages, want silence", len(msgs))
	}
	if h.phase != PhaseWaitingForPlayers {
		t.Fatalf("phase = %s, want waiting-for-players", h.phase)
	}
}

func TestTeacherRebindEvictsPrevious(t *testing.T) {
	h, _ := newTestHub(t)
	first := connect(h, "t1")
	second := connect(h, "t2")

	h.handleEvent(first, ClientMessage{Type: evTeacherConnect})
	h.handleEvent(second, ClientMessage{Type: evTeacherConnect})

	if h.teacher != second {
		t.Fatalf("teacher binding did not move to the new connection")
	}
	if h.clients[first] {
		t.Fatalf("previous teacher connection not terminated")
	}

	if _, ok := findMsg[TeacherStateMessage](drain(second)); !ok {
		t.Fatalf("new teacher did not receive its state snapshot")
	}
}

func TestDisplayBindSnapshotDuringQuestion(t *testing.T) {
	h, _, teacher, _ := startedHub(t)
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	drainAll(h)

	replacement := connect(h, "display2")
	h.handleEvent(replacement, ClientMessage{Type: evDisplayConnect})

	status, ok := findMsg[DisplayStatusMessage](drain(replacement))
	if !ok {
		t.Fatalf("rebound display did not receive status snapshot")
	}
	if status.Question == nil || status.Question.ID != "q0" {
		t.Fatalf("snapshot question = %+v, want q0", status.Question)
	}
	if status.Bee == nil {
		t.Fatalf("snapshot missing bee position")
	}
	if !status.State.QuestionActive {
		t.Fatalf("snapshot state not question-active")
	}
	if h.display != replacement {
		t.Fatalf("display binding did not move to the new connection")
	}
}

func TestJoinRequestPerPhase(t *testing.T) {
	h, _ := newTestHub(t)
	teacher := connect(h, "teacher")
	display := connect(h, "display")
	student := connect(h, "stu")
	h.handleEvent(teacher, ClientMessage{Type: evTeacherConnect})
	h.handleEvent(display, ClientMessage{Type: evDisplayConnect})
	drainAll(h)

	h.handleEvent(student, ClientMessage{Type: evStudentJoinRequest})
	if msg, ok := findMsg[SimpleMessage](drain(student)); !ok || msg.Type != "game-not-started" {
		t.Fatalf("before start: got %+v, want game-not-started", msg)
	}

	h.handleEvent(teacher, ClientMessage{Type: evTeacherStartGame})
	drainAll(h)
	h.handleEvent(student, ClientMessage{Type: evStudentJoinRequest})
	if msg, ok := findMsg[SimpleMessage](drain(student)); !ok || msg.Type != "can-join" {
		t.Fatalf("while waiting: got %+v, want can-join", msg)
	}

	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	drainAll(h)
	h.handleEvent(student, ClientMessage{Type: evStudentJoinRequest})
	if msg, ok := findMsg[SimpleMessage](drain(student)); !ok || msg.Type != "wait-for-round" {
		t.Fatalf("during question: got %+v, want wait-for-round", msg)
	}

	// Step one never has side effects.
	if h.world.playerCount() != 0 {
		t.Fatalf("join request created a player")
	}
}

func TestConfirmJoinDuringQuestionFails(t *testing.T) {
	h, _, teacher, _ := startedHub(t)
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	drainAll(h)

	student := connect(h, "stu")
	drain(student)
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})

	failed, ok := findMsg[JoinFailedMessage](drain(student))
	if !ok {
		t.Fatalf("expected join-failed")
	}
	if failed.Reason != reasonRoundInProgress {
		t.Fatalf("reason = %q, want %q", failed.Reason, reasonRoundInProgress)
	}
	if h.world.playerCount() != 0 {
		t.Fatalf("player created despite failed join")
	}
}

func TestConfirmJoinTwiceOverwrites(t *testing.T) {
	h, _, _, _ := startedHub(t)
	student := connect(h, "stu")

	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "one"})
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "two"})

	if h.world.playerCount() != 1 {
		t.Fatalf("playerCount = %d, want 1", h.world.playerCount())
	}
	if got := h.world.player("stu").Name; got != "TWO" {
		t.Fatalf("name = %q, want TWO", got)
	}
}

// Full happy path from the product scenario: start, join with a messy
// name, answer the active question by walking into zone B, show results.
func TestQuestionRoundScenario(t *testing.T) {
	h, _, teacher, display := startedHub(t)

	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana!! "})

	success, ok := findMsg[JoinSuccessMessage](drain(student))
	if !ok {
		t.Fatalf("expected join-success")
	}
	if success.Player.Name != "ANA" {
		t.Fatalf("sanitized name = %q, want ANA", success.Player.Name)
	}
	if _, ok := findMsg[PlayerJoinedMessage](drain(display)); !ok {
		t.Fatalf("player-joined not broadcast")
	}

	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	if h.phase != PhaseQuestionActive {
		t.Fatalf("phase = %s, want question-active", h.phase)
	}
	if h.currentQuestion().ID != "q0" {
		t.Fatalf("question = %q, want q0", h.currentQuestion().ID)
	}
	if shown, ok := findMsg[ShowQuestionMessage](drain(display)); !ok || shown.Question.ID != "q0" {
		t.Fatalf("display did not receive show-question for q0")
	}
	if _, ok := findMsg[QuestionStartedMessage](drain(student)); !ok {
		t.Fatalf("question-started not broadcast")
	}
	drainAll(h)

	// One step below zone B, then walk up into it.
	p := h.world.player("stu")
	p.Pos = Vec{X: 200, Y: 85}
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "up"})

	if p.CurrentAnswer != "B" {
		t.Fatalf("currentAnswer = %q, want B", p.CurrentAnswer)
	}
	if p.Score != 100 {
		t.Fatalf("score = %d, want 100", p.Score)
	}
	moved, ok := findMsg[PlayerMovedMessage](drain(student))
	if !ok {
		t.Fatalf("player-moved not broadcast")
	}
	if moved.Answer != "B" {
		t.Fatalf("player-moved answer = %q, want B", moved.Answer)
	}
	answeredMsg, ok := findMsg[PlayerAnsweredMessage](drain(teacher))
	if !ok {
		t.Fatalf("player-answered not sent to teacher")
	}
	if answeredMsg.Name != "ANA" || answeredMsg.Letter != "B" {
		t.Fatalf("player-answered = %+v", answeredMsg)
	}

	h.handleEvent(teacher, ClientMessage{Type: evTeacherShowResults})
	if h.phase != PhaseResultsShown {
		t.Fatalf("phase = %s, want results-shown", h.phase)
	}

	results, ok := findMsg[ShowResultsMessage](drain(display))
	if !ok {
		t.Fatalf("show-results not sent to display")
	}
	if results.Results.Stats["B"] != 1 {
		t.Fatalf("stats[B] = %d, want 1", results.Results.Stats["B"])
	}
	if results.Results.Correct != "B" {
		t.Fatalf("correct = %q, want B", results.Results.Correct)
	}
	if results.Results.PlayerCount != 1 {
		t.Fatalf("playerCount = %d, want 1", results.Results.PlayerCount)
	}
	top := results.Results.Rankings[0]
	if top.Name != "ANA" || top.Score != 100 || !top.IsCorrect {
		t.Fatalf("ranking entry = %+v, want ANA/100/correct", top)
	}

	if _, ok := findMsg[ShowResultsMessage](drain(teacher)); !ok {
		t.Fatalf("show-results not sent to teacher")
	}
	if msg, ok := findMsg[SimpleMessage](drain(student)); !ok || msg.Type != "results-shown" {
		t.Fatalf("results-shown not broadcast to students")
	}
}

func TestMoveThrottleDropsRapidMoves(t *testing.T) {
	h, clock, _, _ := startedHub(t)
	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})
	drainAll(h)

	p := h.world.player("stu")
	p.Pos = Vec{X: 200, Y: 200}

	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "right"})
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "right"})

	if p.Pos.X != 210 {
		t.Fatalf("two rapid moves changed x to %g, want exactly one step (210)", p.Pos.X)
	}
	if msgs := drain(student); len(msgs) != 1 {
		t.Fatalf("expected exactly one player-moved broadcast, got %d messages", len(msgs))
	}

	clock.advance(60 * time.Millisecond)
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "right"})
	if p.Pos.X != 220 {
		t.Fatalf("move after throttle window rejected, x = %g", p.Pos.X)
	}
}

func TestMoveWithoutPlayerSilentlyIgnored(t *testing.T) {
	h, _, _, _ := startedHub(t)
	stranger := connect(h, "stranger")
	drain(stranger)

	h.handleEvent(stranger, ClientMessage{Type: evPlayerMove, Direction: "up"})

	if msgs := drain(stranger); len(msgs) != 0 {
		t.Fatalf("expected silence, got %d messages", len(msgs))
	}
}

func TestMoveBlockedAfterAnswering(t *testing.T) {
	h, clock, teacher, _ := startedHub(t)
	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	drainAll(h)

	p := h.world.player("stu")
	p.Pos = Vec{X: 200, Y: 85}
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "up"})
	if p.CurrentAnswer != "B" {
		t.Fatalf("setup: expected recorded answer, got %q", p.CurrentAnswer)
	}
	drainAll(h)

	clock.advance(time.Second)
	before := p.Pos
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "up"})

	if p.Pos != before {
		t.Fatalf("answered player moved: %+v -> %+v", before, p.Pos)
	}
}

func TestNextQuestionWithoutDisplayFails(t *testing.T) {
	h, _, teacher, display := startedHub(t)
	h.handleDisconnect(display)
	drainAll(h)

	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})

	errMsg, ok := findMsg[ErrorMessage](drain(teacher))
	if !ok {
		t.Fatalf("expected error to teacher")
	}
	if errMsg.Reason != reasonDisplayNotConnected {
		t.Fatalf("reason = %q, want %q", errMsg.Reason, reasonDisplayNotConnected)
	}
	if h.phase != PhaseWaitingForPlayers {
		t.Fatalf("phase = %s, state must be unchanged", h.phase)
	}
}

func TestShowResultsRequiresActiveQuestion(t *testing.T) {
	h, _, teacher, _ := startedHub(t)

	h.handleEvent(teacher, ClientMessage{Type: evTeacherShowResults})

	errMsg, ok := findMsg[ErrorMessage](drain(teacher))
	if !ok {
		t.Fatalf("expected error to teacher")
	}
	if errMsg.Reason != reasonNoActiveQuestion {
		t.Fatalf("reason = %q, want %q", errMsg.Reason, reasonNoActiveQuestion)
	}
}

func TestQuestionBankWrapsAround(t *testing.T) {
	h, _, teacher, _ := startedHub(t)

	var seen []string
	for i := 0; i < 3; i++ {
		h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
		seen = append(seen, h.currentQuestion().ID)
		h.handleEvent(teacher, ClientMessage{Type: evTeacherShowResults})
		drainAll(h)
	}

	// Bank size 2: the third advance lands back on the first question.
	want := []string{"q0", "q1", "q0"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("advance %d = %q, want %q (full: %v)", i, seen[i], want[i], seen)
		}
	}
}

func TestShowResultsIsPureRead(t *testing.T) {
	h, _, teacher, _ := startedHub(t)
	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	drainAll(h)

	p := h.world.player("stu")
	p.Pos = Vec{X: 200, Y: 85}
	h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "up"})

	first := h.computeResults()
	second := h.computeResults()

	if p.Score != 100 {
		t.Fatalf("computing results changed score to %d", p.Score)
	}
	if first.Rankings[0].Score != second.Rankings[0].Score {
		t.Fatalf("results not stable across reads: %d vs %d",
			first.Rankings[0].Score, second.Rankings[0].Score)
	}
}

func TestDisplayDisconnectBroadcastsFlag(t *testing.T) {
	h, _, _, display := startedHub(t)
	student := connect(h, "stu")
	drain(student)

	h.handleDisconnect(display)

	state, ok := findMsg[GameStateMessage](drain(student))
	if !ok {
		t.Fatalf("game-state not broadcast on display disconnect")
	}
	if state.DisplayConnected {
		t.Fatalf("display flag still set after disconnect")
	}
	if h.display != nil {
		t.Fatalf("display binding not cleared")
	}
}

func TestStudentDisconnectRemovesPlayer(t *testing.T) {
	h, _, _, display := startedHub(t)
	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})
	drainAll(h)

	h.handleDisconnect(student)

	if h.world.playerCount() != 0 {
		t.Fatalf("player not removed on disconnect")
	}
	left, ok := findMsg[PlayerLeftMessage](drain(display))
	if !ok {
		t.Fatalf("player-left not broadcast")
	}
	if left.Name != "ANA" {
		t.Fatalf("player-left name = %q, want ANA", left.Name)
	}
}

func TestScoreAccumulatesAcrossQuestions(t *testing.T) {
	h, clock, teacher, _ := startedHub(t)
	student := connect(h, "stu")
	h.handleEvent(student, ClientMessage{Type: evConfirmJoin, Name: "ana"})

	answer := func(zoneX float64) {
		drainAll(h)
		p := h.world.player("stu")
		p.Pos = Vec{X: zoneX, Y: 85}
		clock.advance(time.Second)
		h.handleEvent(student, ClientMessage{Type: evPlayerMove, Direction: "up"})
	}

	// q0: correct is B.
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	answer(200)
	h.handleEvent(teacher, ClientMessage{Type: evTeacherShowResults})

	// q1: correct is A.
	h.handleEvent(teacher, ClientMessage{Type: evTeacherNextQ})
	answer(60)

	if got := h.world.player("stu").Score; got != 200 {
		t.Fatalf("score = %d after two correct answers, want 200", got)
	}
}

// Drives the hub through its Run loop instead of calling handlers
// directly, covering channel plumbing and the status query path.
func TestHubRunLoop(t *testing.T) {
	cfg := &Config{
		moveThrottle: 50 * time.Millisecond,
		tickInterval: time.Hour,
	}
	h := newHub(cfg, testGame())
	go h.Run()
	defer h.Stop()

	teacher := &Client{id: "teacher", send: make(chan any, 64)}
	display := &Client{id: "display", send: make(chan any, 64)}
	h.register <- teacher
	h.register <- display
	h.inbox <- inboundEvent{client: teacher, msg: ClientMessage{Type: evTeacherConnect}}
	h.inbox <- inboundEvent{client: display, msg: ClientMessage{Type: evDisplayConnect}}
	h.inbox <- inboundEvent{client: teacher, msg: ClientMessage{Type: evTeacherStartGame}}

	deadline := time.After(2 * time.Second)
	for {
		status := h.Status()
		if status.Started && status.DisplayConnected {
			if status.Phase != "waiting-for-players" {
				t.Fatalf("phase = %q, want waiting-for-players", status.Phase)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("hub never reported started state; last: %+v", status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
