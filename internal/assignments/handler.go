package assignments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/memberloader"
	"github.com/rpattn/memberdesk/internal/middleware"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler lists the logistics allocated on a trip together with the members
// they belong to.
type Handler struct {
	trips   repository.TripRepository
	members repository.MemberRepository
	logger  logrus.FieldLogger
}

func NewHandler(trips repository.TripRepository, members repository.MemberRepository, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{trips: trips, members: members, logger: logger}
}

// Register mounts the assignment routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /trips/{tripID}/assignments", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(strings.TrimSpace(r.PathValue("tripID")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid trip id: %v", err))
		return
	}

	views, err := h.Views(r.Context(), tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		h.logger.WithError(err).WithField("trip_id", tripID).Error("failed to list trip assignments")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Views loads every assignment on the trip and resolves their members in
// one batched lookup.
func (h *Handler) Views(ctx context.Context, tripID uuid.UUID) ([]domain.TripAssignmentView, error) {
	if _, err := h.trips.GetByID(ctx, tripID); err != nil {
		return nil, err
	}

	assignments, err := h.trips.ListAssignments(ctx, tripID)
	if err != nil {
		return nil, err
	}

	loader := middleware.MemberLoaderFromContext(ctx)
	if loader == nil {
		loader = memberloader.NewMemberLoader(h.members)
	}

	ids := make([]uuid.UUID, len(assignments))
	for i, assignment := range assignments {
		ids[i] = assignment.MemberID
	}
	members, err := loader.LoadMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	views := make([]domain.TripAssignmentView, len(assignments))
	for i, assignment := range assignments {
		views[i] = domain.TripAssignmentView{TripAssignment: assignment, Member: members[i]}
	}
	return views, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
