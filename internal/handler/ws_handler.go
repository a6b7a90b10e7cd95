package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/middleware"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/service"
	ws "github.com/skillevaluator/backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a running session: draft autosave, server-side remaining
// time, and final submission.
type WSHandler struct {
	sessionService *service.SessionService
	draftService   *service.DraftService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, draftService *service.DraftService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		draftService:   draftService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/sessions/:session_id/stream
// Upgrades to WebSocket for real-time draft autosave and submission.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	// Ownership and liveness checks happen before the upgrade.
	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if session.Status.IsTerminal() {
		failFromService(c, service.ErrAlreadyCompleted)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("candidate_id", claims.UserID.String()).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, session, raw)
		case ws.ActionTime:
			h.handleTime(conn, wsLog, session)
		case ws.ActionSubmit:
			if done := h.handleSubmit(conn, wsLog, session, claims.UserID, raw); done {
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			ws.WriteError(conn, "unknown action")
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, session *model.Session, raw []byte) {
	var req ws.AutosaveRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QID == "" {
		ws.WriteError(conn, "malformed autosave")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.draftService.Save(ctx, session.ID, req.QID, req.Answer); err != nil {
		ws.WriteError(conn, "autosave failed")
		return
	}
	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleTime(conn *websocket.Conn, wsLog zerolog.Logger, session *model.Session) {
	remaining := session.RemainingSeconds(time.Now())
	if err := ws.WriteTyped(conn, ws.TimeResponse{Event: ws.EventTime, SecondsRemaining: remaining}); err != nil {
		wsLog.Debug().Err(err).Msg("Time write failed")
	}
}

// handleSubmit finalizes the session from the buffered drafts. Returns true
// when the stream should close.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, session *model.Session, candidateID uuid.UUID, raw []byte) bool {
	var req ws.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ws.WriteError(conn, "malformed submit")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	answers, err := h.draftService.Load(ctx, session.ID)
	if err != nil {
		ws.WriteError(conn, "draft load failed")
		return false
	}

	result, err := h.sessionService.SubmitTest(ctx, session.TestID, session.ID, candidateID, &model.SubmitTestRequest{
		Answers:    answers,
		AutoSubmit: req.AutoSubmit,
	})
	if err != nil {
		ws.WriteError(conn, err.Error())
		return false
	}

	score := 0
	if result.Score != nil {
		score = *result.Score
	}
	wsLog.Info().Int("score", score).Msg("Session submitted over stream")

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: string(result.Status),
		Score:  score,
		Total:  result.TotalPoints,
	})
	return true
}
