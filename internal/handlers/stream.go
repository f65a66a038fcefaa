package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	redisclient "github.com/kubeasy-dev/kubeasy-backend/internal/clients/redis"
	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/realtime"
	"github.com/kubeasy-dev/kubeasy-backend/internal/services"
)

const (
	demoDrainInterval     = time.Second
	demoKeepAliveInterval = 30 * time.Second
)

type StreamHandler struct {
	log     *logger.Logger
	hub     *realtime.Hub
	queue   redisclient.EventQueue
	demoSvc services.DemoService
}

func NewStreamHandler(log *logger.Logger, hub *realtime.Hub, queue redisclient.EventQueue, demoSvc services.DemoService) *StreamHandler {
	return &StreamHandler{
		log:     log.With("handler", "StreamHandler"),
		hub:     hub,
		queue:   queue,
		demoSvc: demoSvc,
	}
}

// GET /api/challenges/:slug/stream
//
// Push-based delivery: the client subscribes to its per-(user, challenge)
// channel plus its onboarding channel, and the hub drains into the response
// until the browser disconnects.
func (h *StreamHandler) ChallengeStream(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	slug := c.Param("slug")

	client := h.hub.NewClient(userID)
	h.hub.Subscribe(client, realtime.ChallengeChannel(userID, slug))
	h.hub.Subscribe(client, realtime.OnboardingChannel(userID))

	h.log.Debug("challenge stream open", "user_id", userID, "challenge", slug)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}

// GET /api/demo/stream?token=
//
// Pull-based delivery: events for the trial are parked in a Redis FIFO queue
// and forwarded verbatim on a fixed interval, interleaved with keep-alive
// comments. Client disconnect stops both timers.
func (h *StreamHandler) DemoStream(c *gin.Context) {
	token := c.Query("token")
	if _, err := h.demoSvc.GetSession(c.Request.Context(), token); err != nil {
		RespondServiceError(c, h.log, "demo.stream", err)
		return
	}
	if h.queue == nil {
		RespondError(c, http.StatusServiceUnavailable, "demo_unavailable", fmt.Errorf("demo streaming is not available"))
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "internal_error", fmt.Errorf("streaming unsupported"))
		return
	}
	ctx := c.Request.Context()
	channel := realtime.DemoChannel(token)

	fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	drain := time.NewTicker(demoDrainInterval)
	defer drain.Stop()
	keepAlive := time.NewTicker(demoKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("demo stream closed", "err", ctx.Err())
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-drain.C:
			entries, err := h.queue.Drain(ctx, channel)
			if err != nil {
				h.log.Warn("demo queue drain failed", "error", err)
				continue
			}
			for _, raw := range entries {
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", raw)
			}
			if len(entries) > 0 {
				flusher.Flush()
			}
		}
	}
}
