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
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/middleware"
	"github.com/prepstack/mockexam-backend/internal/model"
	"github.com/prepstack/mockexam-backend/internal/service"
	ws "github.com/prepstack/mockexam-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

// WSHandler streams authoritative attempt state over WebSocket and accepts
// response autosaves from the client.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	tick           time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string, tick time.Duration) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		tick:           tick,
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Pushes the server clock state every tick and accepts autosave actions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	// Ownership check before the upgrade so rejections stay plain HTTP.
	// The active-attempt cache settles the common case; anything else
	// (cache miss, submitted attempt) falls back to the database.
	cached, cacheErr := h.rdb.Get(c.Request.Context(),
		config.CacheKey.StudentActiveAttemptKey(claims.StudentID)).Result()
	if cacheErr != nil || cached != attemptID.String() {
		if _, err := h.attemptService.Get(c.Request.Context(), attemptID, claims.StudentID); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "attempt not accessible"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	stream := ws.NewStream(conn)

	wsLog := h.log.With().
		Int64("student_id", claims.StudentID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	done := make(chan struct{})
	defer close(done)

	go h.pushStateLoop(stream, wsLog, attemptID, claims.StudentID, done)

	h.pushState(context.Background(), stream, attemptID, claims.StudentID)

	for {
		msg, err := stream.ReadEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(stream, wsLog, attemptID, claims.StudentID, msg)
		case ws.ActionPing:
			stream.WriteJSON(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			stream.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// pushStateLoop pushes the authoritative section clocks every tick until the
// connection closes or the attempt is submitted.
func (h *WSHandler) pushStateLoop(stream *ws.Stream, wsLog zerolog.Logger, attemptID uuid.UUID, studentID int64, done <-chan struct{}) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			submitted, err := h.pushState(context.Background(), stream, attemptID, studentID)
			if err != nil {
				wsLog.Debug().Err(err).Msg("State push failed, closing loop")
				return
			}
			if submitted {
				wsLog.Info().Msg("Attempt submitted, closing state loop")
				return
			}
		}
	}
}

func (h *WSHandler) pushState(ctx context.Context, stream *ws.Stream, attemptID uuid.UUID, studentID int64) (bool, error) {
	attempt, err := h.attemptService.Get(ctx, attemptID, studentID)
	if err != nil {
		return false, err
	}

	if err := stream.WriteJSON(ws.StateResponse{
		Event:                ws.EventState,
		Status:               string(attempt.Status),
		CurrentSectionIndex:  attempt.CurrentSection,
		CurrentQuestionIndex: attempt.CurrentQuestion,
		SectionStates:        attempt.Sections,
	}); err != nil {
		return false, err
	}

	return attempt.Status == model.AttemptStatusSubmitted, nil
}

// handleAutosave validates the payload and queues the response for the
// autosave worker. Section-lock enforcement happens at persistence time.
func (h *WSHandler) handleAutosave(stream *ws.Stream, wsLog zerolog.Logger, attemptID uuid.UUID, studentID int64, msg *ws.RequestEnvelope) {
	ctx := context.Background()

	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		stream.WriteError("invalid question_id format")
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"attempt_id":           attemptID.String(),
		"student_id":           studentID,
		"question_id":          questionID.String(),
		"selected_answer":      msg.SelectedAnswer,
		"is_marked_for_review": msg.IsMarkedForReview,
	})
	if err := h.rdb.RPush(ctx, config.WorkerKey.PersistResponsesQueue, payload).Err(); err != nil {
		wsLog.Error().Err(err).Msg("Autosave queue error")
		stream.WriteError("save failed")
		return
	}

	stream.WriteJSON(ws.SavedResponse{Event: ws.EventSaved, QuestionID: questionID.String()})
}
