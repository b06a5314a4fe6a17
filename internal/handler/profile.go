package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/bandcoach/internal/band"
	"github.com/pavelanni/bandcoach/internal/i18n"
	"github.com/pavelanni/bandcoach/internal/model"
)

const dashboardSubmissions = 20

type profileUpdate struct {
	FullName    *string  `json:"full_name" validate:"omitnil,min=1"`
	Age         *int     `json:"age" validate:"omitnil,gte=10,lte=100"`
	Address     *string  `json:"address"`
	Phone       *string  `json:"phone"`
	CurrentBand *float64 `json:"current_band" validate:"omitnil,halfband"`
	TargetBand  *float64 `json:"target_band" validate:"omitnil,halfband"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		req.FullName = &name
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, err)
		return
	}

	u := *model.UserFromContext(r.Context())
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.Age != nil {
		u.Age = req.Age
	}
	if req.Address != nil {
		u.Address = req.Address
	}
	if req.Phone != nil {
		u.Phone = req.Phone
	}
	if req.CurrentBand != nil {
		u.CurrentBand = *req.CurrentBand
	}
	if req.TargetBand != nil {
		u.TargetBand = *req.TargetBand
	}
	if err := h.store.UpdateUser(&u); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &u)
}

type dashboardResponse struct {
	Profile         *model.User           `json:"profile"`
	Submissions     []model.Submission    `json:"submissions"`
	RecentBand      *float64              `json:"recentBand"`
	Personalisation band.Personalisation `json:"personalisation"`
	ProgressPercent float64               `json:"progressPercent"`
	DifficultyLabel string                `json:"difficultyLabel"`
	Summary         string                `json:"summary"`
}

var difficultyMessageIDs = map[band.Difficulty]string{
	band.DifficultyFoundation:   "DifficultyFoundation",
	band.DifficultyIntermediate: "DifficultyIntermediate",
	band.DifficultyAdvanced:     "DifficultyAdvanced",
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)

	// The task balance looks at every submission, the list only at the latest.
	history, err := h.store.ListSubmissions(user.ID, 0)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := dashboardResponse{
		Profile:     user,
		Submissions: history[:min(len(history), dashboardSubmissions)],
	}
	if resp.Submissions == nil {
		resp.Submissions = []model.Submission{}
	}
	if b, ok := band.ComputeRecentBand(history, band.DefaultRecentWindow); ok {
		resp.RecentBand = &b
	}
	resp.Personalisation = band.BuildPersonalisation(*user, history, i18n.Translator(ctx))
	resp.ProgressPercent = band.ProgressPercent(resp.Personalisation.EffectiveBand, user.TargetBand)
	resp.DifficultyLabel = i18n.T(ctx, difficultyMessageIDs[resp.Personalisation.Difficulty])
	resp.Summary = i18n.Tp(ctx, "EssaysMarked", len(history))

	respondJSON(w, http.StatusOK, resp)
}
