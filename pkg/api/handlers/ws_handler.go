package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/internal/ades"
	"github.com/eodatahub/action-creator/internal/apperr"
	"github.com/eodatahub/action-creator/internal/cwl"
	"github.com/eodatahub/action-creator/internal/events"
	"github.com/eodatahub/action-creator/internal/stac"
	"github.com/eodatahub/action-creator/internal/workflow"
	"github.com/eodatahub/action-creator/internal/workspace"
	"github.com/eodatahub/action-creator/pkg/api/dto"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

// WSHandler runs the submit-and-monitor WebSocket: one workflow
// message in, status frames out until the job reaches a terminal
// state.
type WSHandler struct {
	secret       []byte
	validator    *workflow.Validator
	synthesizer  *cwl.Synthesizer
	prober       CatalogProber
	engines      EngineFactory
	tokens       *workspace.Client
	publisher    *events.Publisher
	pollInterval time.Duration
	log          *logrus.Entry
	upgrader     websocket.Upgrader
}

// NewWSHandler wires the WebSocket submission pipeline. tokens may be
// nil, in which case engine calls reuse the caller's bearer.
func NewWSHandler(
	secret []byte,
	validator *workflow.Validator,
	synthesizer *cwl.Synthesizer,
	prober CatalogProber,
	engines EngineFactory,
	tokens *workspace.Client,
	publisher *events.Publisher,
	pollInterval time.Duration,
	log *logrus.Entry,
) *WSHandler {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &WSHandler{
		secret:       secret,
		validator:    validator,
		synthesizer:  synthesizer,
		prober:       prober,
		engines:      engines,
		tokens:       tokens,
		publisher:    publisher,
		pollInterval: pollInterval,
		log:          log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// wsFailure carries a frame plus the close code to end the socket with.
type wsFailure struct {
	frame dto.WSFrame
	close int
}

func validationFailure(loc []string, err error) *wsFailure {
	var envelope dto.ErrorEnvelope
	if appErr, ok := apperr.As(err); ok {
		envelope = dto.FromAppError(loc, appErr)
	} else {
		envelope = dto.NewErrorEnvelope(loc, "validation_error", err.Error(), nil)
	}
	return &wsFailure{
		frame: dto.WSFrame{StatusCode: http.StatusUnprocessableEntity, Result: envelope.Detail},
		close: websocket.CloseUnsupportedData,
	}
}

func internalFailure(msg string) *wsFailure {
	envelope := dto.NewErrorEnvelope([]string{"server"}, "internal_server_error", msg, nil)
	return &wsFailure{
		frame: dto.WSFrame{StatusCode: http.StatusInternalServerError, Result: envelope.Detail},
		close: websocket.CloseInternalServerErr,
	}
}

func engineFailure(err error) *wsFailure {
	if engineErr, ok := ades.AsEngineError(err); ok {
		envelope := dto.NewErrorEnvelope([]string{"engine"}, engineErr.Code, engineErr.Detail, nil)
		return &wsFailure{
			frame: dto.WSFrame{StatusCode: engineErr.Status, Result: envelope.Detail},
			close: websocket.CloseInternalServerErr,
		}
	}
	return internalFailure("execution engine call failed")
}

// Handle upgrades the connection and runs one submission lifecycle.
// Authentication happens on the handshake, before the upgrade.
func (h *WSHandler) Handle(c *gin.Context) {
	header := c.GetHeader("Authorization")
	bearer, ok := middleware.BearerFromHeader(header)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, []string{"header", "authorization"},
			"not_authorized", "Authorization header format must be 'Bearer {token}'")
		return
	}
	claims, err := middleware.ValidateToken(h.secret, bearer)
	if err != nil {
		middleware.AbortWithError(c, http.StatusUnauthorized, []string{"header", "authorization"},
			"not_authorized", "invalid bearer token")
		return
	}
	userID := claims.PreferredUsername
	ws := claims.Workspace
	if ws == "" {
		ws = userID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("workspace", ws)
	if failure := h.run(c.Request.Context(), conn, ws, userID, bearer, log); failure != nil {
		if err := conn.WriteJSON(failure.frame); err != nil {
			log.WithError(err).Debug("client gone before failure frame")
			return
		}
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(failure.close, ""), deadline)
	}
}

func (h *WSHandler) run(ctx context.Context, conn *websocket.Conn, ws, userID, bearer string, log *logrus.Entry) *wsFailure {
	var req dto.SubmissionRequest
	if err := conn.ReadJSON(&req); err != nil {
		return validationFailure([]string{"body"}, err)
	}

	doc := &req.Workflow
	if doc.Identifier != "" {
		normalized, err := workflow.NormalizeIdentifier(doc.Identifier)
		if err != nil {
			return validationFailure([]string{"body", "workflow", "identifier"}, err)
		}
		doc.Identifier = normalized
	}
	if err := h.validator.Validate(doc); err != nil {
		return validationFailure([]string{"body", "workflow"}, err)
	}

	count, err := h.prober.Search(ctx, stac.SearchParams{
		Collection: doc.Inputs.Dataset,
		Intersects: doc.Inputs.Area,
		DateStart:  doc.Inputs.DateStart,
		DateEnd:    doc.Inputs.DateEnd,
	})
	if err != nil {
		log.WithError(err).Error("catalog pre-flight probe failed")
		return internalFailure("catalog probe failed")
	}
	if count == 0 {
		envelope := dto.NewErrorEnvelope([]string{"body", "workflow", "inputs"},
			"no_items_to_process_error", "no catalog items match the requested configuration", nil)
		return &wsFailure{
			frame: dto.WSFrame{StatusCode: http.StatusBadRequest, Result: envelope.Detail},
			close: websocket.CloseUnsupportedData,
		}
	}

	artifact, err := h.synthesizer.Synthesize(doc)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return validationFailure([]string{"body", "workflow"}, err)
		}
		log.WithError(err).Error("application package synthesis failed")
		return internalFailure("workflow compilation failed")
	}

	token := bearer
	if h.tokens != nil {
		scoped, err := h.tokens.Token(ctx, ws, userID, bearer)
		if err != nil {
			log.WithError(err).Error("workspace session exchange failed")
			return internalFailure("workspace session exchange failed")
		}
		token = scoped
	}
	engine := h.engines(ws, token)

	spec := cwl.SubstitutePlaceholders(artifact.AppSpec)
	if _, err := engine.RegisterFresh(ctx, artifact.WorkflowID, spec); err != nil {
		return engineFailure(err)
	}
	info, err := engine.Execute(ctx, artifact.WorkflowID, artifact.UserInputs)
	if err != nil {
		return engineFailure(err)
	}

	h.publisher.Submitted(events.SubmissionEvent{
		JobID:      info.JobID,
		WorkflowID: artifact.WorkflowID,
		Workspace:  ws,
		Status:     string(info.Status.Normalize()),
	})

	accepted := dto.WSFrame{StatusCode: http.StatusAccepted, Result: dto.NewJob(info, req.Workflow)}
	if err := conn.WriteJSON(accepted); err != nil {
		log.WithError(err).Info("client disconnected before acceptance frame")
		return nil
	}

	final, failure := h.monitor(ctx, conn, engine, info.JobID, log)
	if failure != nil {
		return failure
	}
	if final == nil {
		return nil
	}

	h.publisher.Finished(events.SubmissionEvent{
		JobID:      final.JobID,
		WorkflowID: artifact.WorkflowID,
		Workspace:  ws,
		Status:     string(final.Status.Normalize()),
	})

	done := dto.WSFrame{StatusCode: http.StatusOK, Result: dto.NewJobSummary(final)}
	if err := conn.WriteJSON(done); err != nil {
		log.WithError(err).Debug("client gone before terminal frame")
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return nil
}

// monitor polls the engine until the job leaves its in-flight states.
// A nil StatusInfo with a nil failure means the client went away.
func (h *WSHandler) monitor(ctx context.Context, conn *websocket.Conn, engine EngineClient, jobID string, log *logrus.Entry) (*ades.StatusInfo, *wsFailure) {
	// Reads only fail once the peer hangs up; use that as the
	// disconnect signal so polling stops with the client.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-gone:
			log.Info("client disconnected, stopping job monitor")
			return nil, nil
		case <-ticker.C:
			info, err := engine.GetJob(ctx, jobID)
			if err != nil {
				return nil, engineFailure(err)
			}
			if info.Status.Terminal() {
				return info, nil
			}
		}
	}
}
