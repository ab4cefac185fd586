package devices

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/infrastructure/json"
	"github.com/devclip/clipsync/internal/infrastructure/ws"
	"github.com/devclip/clipsync/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	sessions *service.SessionService
	groups   *ws.GroupManager
	core     *ws.Core
}

func NewHandler(sessions *service.SessionService, groups *ws.GroupManager, core *ws.Core) *Handler {
	return &Handler{
		sessions: sessions,
		groups:   groups,
		core:     core,
	}
}

// ConnectHandler creates a new device session or joins an existing one. The
// response carries the secret key; holding code + key is the only capability
// needed to read or write the clipboard.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	result, err := h.sessions.Connect(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			json.WriteBadRequestError(w, "Device code must be 6 digits")
		case errors.Is(err, domain.ErrSessionNotFound):
			json.WriteNotFoundError(w, err, "Device not found")
		default:
			log.Printf("Failed to connect device %q: %v", req.Code, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusOK, connectResponse{
		Success:    true,
		DeviceCode: result.Code,
		IsNew:      result.IsNew,
		SecretKey:  result.SecretKey,
	})
}

// GetClipboardHandler returns the decrypted clipboard for a device code.
func (h *Handler) GetClipboardHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	text, lastActive, err := h.sessions.Read(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			json.WriteBadRequestError(w, "Device code must be 6 digits")
		case errors.Is(err, domain.ErrSessionNotFound):
			json.WriteNotFoundError(w, err, "Device not found")
		default:
			log.Printf("Failed to read clipboard for %s: %v", code, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusOK, clipboardResponse{
		Success:    true,
		Text:       text,
		LastUpdate: lastActive.UTC().Format(time.RFC3339),
	})
}

// WebSocketHandler upgrades the connection and hands it to the realtime
// core. The connection starts unbound; a join-device event binds it.
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.groups.Upgrade(w, r)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(conn)

	go client.WriteMessage()
	go client.ReadMessage(h.core)
}
