package server

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"github.com/rs/zerolog"
)

// Hub pushes toasts and progress updates to every connected browser over a
// single websocket. It backs both notification interfaces of the session
// store, so store operations never know about the transport.
type Hub struct {
	m   *melody.Melody
	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	m := melody.New()
	m.Config.MaxMessageSize = 1024 * 1024
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleError(func(_ *melody.Session, err error) {
		log.Debug().Err(err).Msg("websocket error")
	})

	return &Hub{m: m, log: log}
}

// HandleWS upgrades the request and parks it on the hub.
func (h *Hub) HandleWS(c *gin.Context) {
	if err := h.m.HandleRequest(c.Writer, c.Request); err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

type event struct {
	Type             string  `json:"type"`
	Kind             string  `json:"kind,omitempty"`
	Message          string  `json:"message,omitempty"`
	Op               string  `json:"op,omitempty"`
	Value            float64 `json:"value,omitempty"`
	RemainingSeconds int     `json:"remainingSeconds,omitempty"`
}

// Notify broadcasts a toast.
func (h *Hub) Notify(kind, message string) {
	h.broadcast(event{Type: "toast", Kind: kind, Message: message})
}

// Progress broadcasts a synthetic progress update for an in-flight operation.
func (h *Hub) Progress(op string, value float64, remaining time.Duration) {
	h.broadcast(event{
		Type:             "progress",
		Op:               op,
		Value:            value,
		RemainingSeconds: int(remaining.Seconds()),
	})
}

func (h *Hub) broadcast(e event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := h.m.Broadcast(payload); err != nil {
		h.log.Debug().Err(err).Msg("websocket broadcast failed")
	}
}
