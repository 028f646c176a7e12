package main

// Inbound event names.
const (
	evTeacherConnect     = "teacher-connect"
	evDisplayConnect     = "display-connect"
	evStudentJoinRequest = "student-join-request"
	evConfirmJoin        = "confirm-join"
	evPlayerMove         = "player-move"
	evTeacherStartGame   = "teacher-start-game"
	evTeacherNextQ       = "teacher-next-question"
	evTeacherShowResults = "teacher-show-results"
)

// ClientMessage is the single inbound envelope; payload fields are
// optional depending on Type.
type ClientMessage struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`      // confirm-join
	Direction string `json:"direction,omitempty"` // player-move
}

// Audience selects who receives an outbound message. Keeping it an
// explicit tag keeps fan-out logic testable apart from the transport.
type Audience int

const (
	ToEveryone Audience = iota
	ToDisplay
	ToTeacher
	ToSender
)

// PlayerSnapshot is the wire form of a player.
type PlayerSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Pos      Vec    `json:"pos"`
	Score    int    `json:"score"`
	Sprite   Sprite `json:"sprite"`
	Answered bool   `json:"answered"`
}

// QuestionView is a question as shown to clients: never the correct letter.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

type RankEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Answer    string `json:"answer,omitempty"`
	IsCorrect bool   `json:"is_correct"`
}

type ResultsView struct {
	Stats       map[string]int `json:"stats"`
	Rankings    []RankEntry    `json:"rankings"`
	Correct     string         `json:"correct"`
	PlayerCount int            `json:"player_count"`
}

// ErrorMessage names an unmet precondition to the offending sender.
type ErrorMessage struct {
	Type    string `json:"type"`    // "error"
	Reason  string `json:"reason"`  // machine-readable precondition code
	Message string `json:"message"` // user-facing text
}

// Precondition reason codes.
const (
	reasonDisplayNotConnected = "display-not-connected"
	reasonGameNotStarted      = "game-not-started"
	reasonGameAlreadyStarted  = "game-already-started"
	reasonNoActiveQuestion    = "no-active-question"
	reasonRoundInProgress     = "round-in-progress"
)

// SimpleMessage is for generic notifications.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// GameStateMessage summarizes session state for any audience.
type GameStateMessage struct {
	Type             string `json:"type"` // "game-state"
	Phase            string `json:"phase"`
	Started          bool   `json:"started"`
	QuestionActive   bool   `json:"question_active"`
	ResultsShown     bool   `json:"results_shown"`
	DisplayConnected bool   `json:"display_connected"`
	PlayerCount      int    `json:"player_count"`
}

// TeacherStateMessage is the snapshot pushed on teacher bind.
type TeacherStateMessage struct {
	Type  string           `json:"type"` // "teacher-state"
	State GameStateMessage `json:"state"`
}

// DisplayStatusMessage is the snapshot pushed on display bind: the full
// roster plus the active question and bee, so a reconnecting projector
// never renders a partial view.
type DisplayStatusMessage struct {
	Type     string           `json:"type"` // "display-status"
	State    GameStateMessage `json:"state"`
	Players  []PlayerSnapshot `json:"players"`
	Question *QuestionView    `json:"question,omitempty"`
	Bee      *Vec             `json:"bee,omitempty"`
}

type JoinFailedMessage struct {
	Type    string `json:"type"` // "join-failed"
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type JoinSuccessMessage struct {
	Type   string           `json:"type"` // "join-success"
	Player PlayerSnapshot   `json:"player"`
	State  GameStateMessage `json:"state"`
}

type PlayerJoinedMessage struct {
	Type   string         `json:"type"` // "player-joined"
	Player PlayerSnapshot `json:"player"`
}

type PlayerMovedMessage struct {
	Type   string `json:"type"` // "player-moved"
	ID     string `json:"id"`
	From   Vec    `json:"from"`
	To     Vec    `json:"to"`
	Answer string `json:"answer,omitempty"` // letter, only when newly recorded
}

// PlayerAnsweredMessage goes to the teacher only.
type PlayerAnsweredMessage struct {
	Type   string `json:"type"` // "player-answered"
	ID     string `json:"id"`
	Name   string `json:"name"`
	Letter string `json:"letter"`
}

type QuestionStartedMessage struct {
	Type  string `json:"type"` // "question-started"
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// ShowQuestionMessage goes to the display only and carries the full
// question payload plus the current roster.
type ShowQuestionMessage struct {
	Type     string           `json:"type"` // "show-question"
	Question QuestionView     `json:"question"`
	Players  []PlayerSnapshot `json:"players"`
}

type ShowResultsMessage struct {
	Type    string      `json:"type"` // "show-results"
	Results ResultsView `json:"results"`
}

type BeeCollisionMessage struct {
	Type string `json:"type"` // "bee-collision"
	ID   string `json:"id"`
	Name string `json:"name"`
	Pos  Vec    `json:"pos"`
}

// BeeUpdateMessage is the high-frequency position feed; display only.
type BeeUpdateMessage struct {
	Type string `json:"type"` // "bee-update"
	Pos  Vec    `json:"pos"`
}

type PlayerLeftMessage struct {
	Type string `json:"type"` // "player-left"
	ID   string `json:"id"`
	Name string `json:"name"`
}

func snapshotPlayer(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Pos:      p.Pos,
		Score:    p.Score,
		Sprite:   p.Sprite,
		Answered: p.answered(),
	}
}

func viewQuestion(q Question) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: q.Options,
	}
}
