package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/facematch"
)

// PeopleHandler handles people endpoints
type PeopleHandler struct {
	store  database.PersonStore
	logger *slog.Logger
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(store database.PersonStore, logger *slog.Logger) *PeopleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeopleHandler{store: store, logger: logger}
}

// List returns everyone keyed by person id, ordered by surname, first name
// and id. The optional q parameter keeps people whose names contain every
// word of it, ignoring case and diacritics.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.store.ListPeople(r.Context())
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		people = facematch.MatchPeople(people, q)
	}

	var resp IDMap[PersonResponse]
	for i := range people {
		resp.Add(people[i].ID, personToResponse(&people[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns a person, or null when it does not exist.
func (h *PeopleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	person, err := h.store.GetPerson(r.Context(), id)
	if err != nil {
		respondFailure(w, errDatabaseQuery, err)
		return
	}
	if person == nil {
		respondNull(w)
		return
	}
	respondJSON(w, http.StatusOK, personToResponse(person))
}

// Update overwrites a person's names and date of birth.
func (h *PeopleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PersonResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, errInvalidRequestBody, withStatus(http.StatusBadRequest, err))
		return
	}

	if err := h.store.UpdatePerson(r.Context(), req.toPerson(id)); err != nil {
		respondFailure(w, "Database update failed", err)
		return
	}
	h.logger.Info("person updated", "person_id", id)
	w.WriteHeader(http.StatusOK)
}

// Merge moves every appearance of src to dst and deletes src.
func (h *PeopleHandler) Merge(w http.ResponseWriter, r *http.Request) {
	dst, err := pathID(r, "dst")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	src, err := pathID(r, "src")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.MergePeople(r.Context(), dst, src); err != nil {
		respondFailure(w, "Database update failed", err)
		return
	}
	h.logger.Info("people merged", "dst", dst, "src", src)
	respondNull(w)
}
