package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/realtime"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

type roomStatusService interface {
	GetRoomStatus(ctx context.Context, principal application.Principal, roomID string) (application.RoomStatus, error)
	ListRoomStatuses(ctx context.Context, principal application.Principal) ([]application.RoomStatus, error)
}

type availabilityService interface {
	IsRoomAvailable(ctx context.Context, principal application.Principal, roomID string, start, end time.Time, excludeReservationID string) (bool, error)
}

type RoomHandler struct {
	service      roomService
	status       roomStatusService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

func NewRoomHandler(service roomService, status roomStatusService, availability availabilityService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{
		service:      service,
		status:       status,
		availability: availability,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, realtime.NewRoomView(room))
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, realtime.NewRoomView(room))
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	room, err := h.service.GetRoom(r.Context(), principal, roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, realtime.NewRoomView(room))
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]realtime.RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, realtime.NewRoomView(room))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: views})
}

// ListStatuses reports the derived occupancy of every room in the
// principal's organization.
func (h *RoomHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.status == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	statuses, err := h.status.ListRoomStatuses(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]roomStatusDTO, 0, len(statuses))
	for _, status := range statuses {
		views = append(views, roomStatusDTO{
			RoomID: status.RoomID,
			Status: realtime.RoomStatusLabel(status.Occupied),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomStatusesResponse{RoomStatuses: views})
}

// GetStatus reports the derived occupancy of a single room.
func (h *RoomHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.status == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status, err := h.status.GetRoomStatus(r.Context(), principal, roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomStatusDTO{
		RoomID: status.RoomID,
		Status: realtime.RoomStatusLabel(status.Occupied),
	})
}

// Availability answers whether a room is free for the requested slot
// without creating a reservation.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	query := r.URL.Query()
	start := parseTime(query.Get("start"))
	end := parseTime(query.Get("end"))
	if start.IsZero() || end.IsZero() || !end.After(start) {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			Message: "The request contains invalid fields.",
			Errors: map[string]string{
				"start": "start and end must be RFC 3339 timestamps with end after start",
			},
		})
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	available, err := h.availability.IsRoomAvailable(r.Context(), principal, roomID, start, end, strings.TrimSpace(query.Get("excludeReservationId")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		RoomID:    roomID,
		Available: available,
	})
}

type roomRequest struct {
	Name                     string `json:"name"`
	Capacity                 int    `json:"capacity"`
	DisplayProjector         bool   `json:"displayProjector"`
	DisplayWhiteboard        bool   `json:"displayWhiteboard"`
	CateringAvailable        bool   `json:"cateringAvailable"`
	VideoConferenceAvailable bool   `json:"videoConferenceAvailable"`
	Active                   *bool  `json:"active"`
}

func (r roomRequest) toInput() application.RoomInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return application.RoomInput{
		Name:                     strings.TrimSpace(r.Name),
		Capacity:                 r.Capacity,
		DisplayProjector:         r.DisplayProjector,
		DisplayWhiteboard:        r.DisplayWhiteboard,
		CateringAvailable:        r.CateringAvailable,
		VideoConferenceAvailable: r.VideoConferenceAvailable,
		Active:                   active,
	}
}

type listRoomsResponse struct {
	Rooms []realtime.RoomView `json:"rooms"`
}

type roomStatusDTO struct {
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}

type listRoomStatusesResponse struct {
	RoomStatuses []roomStatusDTO `json:"roomStatuses"`
}

type availabilityResponse struct {
	RoomID    string `json:"roomId"`
	Available bool   `json:"available"`
}
