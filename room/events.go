package room

import "time"

// 房间事件类型
const (
	EventRoomCreated     = "room_created"
	EventRoomRemoved     = "room_removed"
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventGameStarted     = "game_started"
	EventRoundStarted    = "round_started"
	EventAnswerSubmitted = "answer_submitted"
	EventRoundClosed     = "round_closed"
	EventGameFinished    = "game_finished"
)

// Reasons a round closes.
const (
	ReasonDeadline     = "deadline"
	ReasonAllAnswered  = "all_answered"
	ReasonFirstCorrect = "first_correct"
	ReasonAllCorrect   = "all_correct"
)

// Event is a notification about a room state change. Data is owned by the
// receiver; rooms never retain references to it.
type Event struct {
	Type   string      `json:"type"`
	RoomID string      `json:"room_id"`
	Player string      `json:"player,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	At     time.Time   `json:"at"`
}

// RoundClosedData accompanies EventRoundClosed.
type RoundClosedData struct {
	Round  int    `json:"round"`
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// AnswerData accompanies EventAnswerSubmitted. It never carries the word.
type AnswerData struct {
	Round   int  `json:"round"`
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

// Fanout delivers an event to several notifiers in order.
type Fanout []Notifier

func (f Fanout) Notify(evt Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(evt)
		}
	}
}
