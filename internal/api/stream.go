package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trinity/internal/agents"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const streamWriteTimeout = 10 * time.Second

// streamRequest is the single message a client sends after connecting.
type streamRequest struct {
	Task          string                 `json:"task"`
	Context       map[string]interface{} `json:"context,omitempty"`
	MaxIterations int                    `json:"max_iterations,omitempty"`
}

// handleAgentStream upgrades to a websocket, reads one task request, and
// streams run events back frame by frame until the run finishes.
func (h *Handlers) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	agent, err := h.agents.Get(name)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "agent", name, "error", err)
		return
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.writeStreamError(conn, "invalid request: "+err.Error())
		return
	}
	if req.Task == "" {
		h.writeStreamError(conn, "task is required")
		return
	}

	events, cancel := agent.Subscribe()
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		_, err := h.engine.RunTask(r.Context(), name, req.Task, req.Context, req.MaxIterations)
		runDone <- err
	}()

	// The first started event after subscribing belongs to our run; filter
	// the rest by thought ID so concurrent runs do not interleave.
	thoughtID := ""
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if thoughtID == "" && event.Type == agents.RunEventStarted && event.Task == req.Task {
				thoughtID = event.ThoughtID
			}
			if event.ThoughtID != thoughtID {
				continue
			}
			if err := h.writeStreamEvent(conn, event); err != nil {
				h.log.Debug("Stream write failed, closing", "agent", name, "error", err)
				return
			}
			if event.Type == agents.RunEventCompleted || event.Type == agents.RunEventFailed {
				return
			}

		case err := <-runDone:
			// The run can fail before any event reaches us, for instance
			// when the task is rejected up front.
			if err != nil && thoughtID == "" {
				h.writeStreamError(conn, err.Error())
				return
			}
			runDone = nil

		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) writeStreamEvent(conn *websocket.Conn, event agents.RunEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

func (h *Handlers) writeStreamError(conn *websocket.Conn, detail string) {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	_ = conn.WriteJSON(agents.RunEvent{
		Type:      agents.RunEventFailed,
		Error:     detail,
		Timestamp: time.Now().UTC(),
	})
}
