package handlers

import (
	"net/http"

	"github.com/gartstein/staffing/internal/portal/middleware"
	"github.com/gartstein/staffing/internal/portal/models"
	"go.uber.org/zap"
)

// VerifyAccessCode checks a code and returns the client profile used to
// pre-fill the job posting form.
func (h *Handler) VerifyAccessCode(w http.ResponseWriter, r *http.Request) {
	var req accessCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	client, err := h.verifier.Verify(r.Context(), req.AccessCode, middleware.ClientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Success: true, Client: client.Profile()})
}

func (h *Handler) SubmitJobPosting(w http.ResponseWriter, r *http.Request) {
	var in models.JobPostingInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	posting, err := h.intake.SubmitJobPosting(r.Context(), &in, middleware.ClientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Debug("Job posting accepted",
		zap.String("id", posting.ID.String()),
		zap.Bool("existing_client", posting.IsExistingClient),
	)
	writeJSON(w, http.StatusCreated, idBody{ID: posting.ID})
}

func (h *Handler) SubmitCodeRequest(w http.ResponseWriter, r *http.Request) {
	var in models.CodeRequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.intake.SubmitCodeRequest(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idBody{ID: req.ID})
}

func (h *Handler) SubmitJobApplication(w http.ResponseWriter, r *http.Request) {
	var in models.JobApplicationInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	app, err := h.intake.SubmitJobApplication(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idBody{ID: app.ID})
}

// ClientLogin exchanges an access code for a client bearer token.
func (h *Handler) ClientLogin(w http.ResponseWriter, r *http.Request) {
	var req accessCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.clients.Login(r.Context(), req.AccessCode, middleware.ClientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
