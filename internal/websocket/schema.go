package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionTime     Action = "time"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to buffer a single draft answer.
type AutosaveRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// SubmitRequest is sent by the client to finish and grade the attempt from
// the buffered drafts. AutoSubmit marks the client countdown firing.
type SubmitRequest struct {
	Action     Action `json:"action"`
	AutoSubmit bool   `json:"auto_submit"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventTime    Event = "time"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type GradedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Score  int    `json:"score"`
	Total  int    `json:"total_points"`
}

// TimeResponse reports the server-side remaining seconds for the session.
type TimeResponse struct {
	Event            Event `json:"event"`
	SecondsRemaining int   `json:"seconds_remaining"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
