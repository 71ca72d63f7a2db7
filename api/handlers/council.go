package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/councilflow/councilflow/api"
	"github.com/councilflow/councilflow/council"
)

// CouncilHandler reports the configured council composition.
type CouncilHandler struct {
	members  []council.Member
	chairman council.Member
	logger   *zap.Logger
}

// NewCouncilHandler creates the handler.
func NewCouncilHandler(members []council.Member, chairman council.Member, logger *zap.Logger) *CouncilHandler {
	return &CouncilHandler{
		members:  members,
		chairman: chairman,
		logger:   logger,
	}
}

// HandleGet serves GET /api/council.
func (h *CouncilHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info := api.CouncilInfo{
		Members:  make([]string, 0, len(h.members)),
		Chairman: string(h.chairman),
	}
	for _, m := range h.members {
		info.Members = append(info.Members, string(m))
	}
	WriteSuccess(w, info)
}
