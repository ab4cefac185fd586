package health

import (
	"net/http"
	"time"

	"github.com/devclip/clipsync/internal/infrastructure/json"
	"github.com/devclip/clipsync/internal/infrastructure/ws"
)

type Handler struct {
	groups *ws.GroupManager
}

func NewHandler(groups *ws.GroupManager) *Handler {
	return &Handler{groups: groups}
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	data := healthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConnectedCount: h.groups.ConnectedCount(),
	}
	json.Write(w, http.StatusOK, data)
}
