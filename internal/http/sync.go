package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/monitorasaude/api/internal/http/middleware"
	"github.com/monitorasaude/api/internal/http/render"
	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/store"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
)

type syncStatus struct {
	link.Status
	Failed int `json:"failed"`
}

// SyncStatus devolve o modo da sessão, a fila pendente e as rejeições.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	out := syncStatus{Status: h.link.Status()}
	if h.outbox != nil {
		failed, err := h.outbox.Failed(r.Context())
		if err != nil {
			render.Error(w, r, err)
			return
		}
		out.Failed = len(failed)
	}
	render.JSON(w, http.StatusOK, out)
}

// SyncFlush força a sincronização da fila local com o remoto.
func (h *Handler) SyncFlush(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		render.Error(w, r, link.ErrNotConfigured)
		return
	}
	res, err := h.syncer.Sync(r.Context())
	switch {
	case err == nil:
		render.JSON(w, http.StatusOK, res)
	case errors.Is(err, link.ErrForcedLocal):
		render.Fail(w, http.StatusConflict, "CONFLICT", link.ErrForcedLocal.Error(), nil)
	case errors.Is(err, link.ErrNotConfigured), errors.Is(err, link.ErrRemoteUnavailable):
		render.Error(w, r, err)
	default:
		// falha no meio da fila: o que foi aplicado continua aplicado
		render.Fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", "sincronização interrompida", flushDetails(res, err))
	}
}

func flushDetails(res store.FlushResult, err error) map[string]any {
	return map[string]any{
		"applied":  res.Applied,
		"rejected": res.Rejected,
		"pending":  res.Pending,
		"cause":    link.Classify(err),
	}
}

// SyncOffline fixa o modo local (manutenção do banco remoto).
func (h *Handler) SyncOffline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := render.Decode(r, &body); err != nil {
			render.Error(w, r, err)
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "manutenção"
	}
	h.link.ForceLocal(body.Reason)
	render.JSON(w, http.StatusOK, h.link.Status())
}

// SyncOnline libera o modo local forçado.
func (h *Handler) SyncOnline(w http.ResponseWriter, r *http.Request) {
	h.link.Resume()
	render.JSON(w, http.StatusOK, h.link.Status())
}

func (h *Handler) upgrader() websocket.Upgrader {
	allowed := httpmiddleware.OriginMatcher(h.allowOrigins)
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed(origin)
		},
	}
}

// SyncFeed abre um websocket que recebe o estado atual e cada mudança seguinte.
func (h *Handler) SyncFeed(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu ao cliente
		log.Debug().Err(err).Msg("websocket recusado")
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.link.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(feedPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		return conn.WriteJSON(v)
	}

	if err := send(h.link.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := send(st); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
