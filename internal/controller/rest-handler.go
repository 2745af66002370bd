package controller

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/syncroom/server/internal/service/search"
	"github.com/syncroom/server/pkg/rest"
)

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	roomID := c.roomService.CreateRoom(r.Context())

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": map[string]any{
		"roomId": roomID,
	}})
}

// getRoomInfo validates the id format and reports whether the room has any
// state. A freshly created id exists only after the first join.
func (c *controller) getRoomInfo(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	if !roomIDPattern.MatchString(roomID) {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "malformed room id"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"roomId": roomID,
		"exists": c.roomService.RoomExists(r.Context(), roomID),
	}})
}

func (c *controller) searchVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "query parameter q is required"})
		return
	}

	videos, err := c.searchService.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
			return
		}

		c.logger.WarnContext(r.Context(), "video search failed", "error", err)
		rest.WriteJSON(w, http.StatusOK, rest.Envelope{
			"data":  []search.Video{},
			"error": "video search is temporarily unavailable",
		})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": videos})
}
