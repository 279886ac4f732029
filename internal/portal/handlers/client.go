package handlers

import (
	"net/http"

	"github.com/gartstein/staffing/internal/portal/models"
)

func (h *Handler) ListOwnPostings(w http.ResponseWriter, r *http.Request) {
	postings, err := h.clients.ListOwnPostings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

func (h *Handler) CreateOwnPosting(w http.ResponseWriter, r *http.Request) {
	var in models.JobPostingInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	posting, err := h.clients.CreatePosting(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posting)
}

func (h *Handler) UpdateOwnPosting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var update models.JobPostingUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.fail(w, r, err)
		return
	}
	update.ID = id

	posting, err := h.clients.UpdatePosting(r.Context(), &update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posting)
}

func (h *Handler) DeleteOwnPosting(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.clients.DeletePosting(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *Handler) ClientLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}
