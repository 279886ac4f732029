package handlers

import (
	"net/http"

	"github.com/gartstein/staffing/internal/portal/models"
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.admin.DashboardSummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListJobPostings(w http.ResponseWriter, r *http.Request) {
	status, err := jobStatusFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	postings, err := h.admin.ListJobPostings(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postings)
}

func (h *Handler) SetJobPostingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	posting, err := h.admin.SetJobPostingStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posting)
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.admin.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var in models.NewClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	client, err := h.admin.CreateClient(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, clientWithCode{Client: client, AccessCode: client.AccessCode})
}

// BulkGenerateClients returns 200 with per-entry results even when some
// entries failed.
func (h *Handler) BulkGenerateClients(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	results, err := h.admin.BulkGenerateClients(r.Context(), req.Clients)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeBulk(results))
}

func (h *Handler) GetClientDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.admin.GetClientDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var update models.ClientUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		h.fail(w, r, err)
		return
	}
	update.ID = id

	client, err := h.admin.UpdateClient(r.Context(), &update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) DeactivateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.admin.DeactivateClient(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *Handler) RegenerateAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	code, err := h.admin.RegenerateAccessCode(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accessCodeResponse{AccessCode: code})
}

func (h *Handler) ListCodeRequests(w http.ResponseWriter, r *http.Request) {
	status, err := codeRequestStatusFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	reqs, err := h.admin.ListCodeRequests(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) ApproveCodeRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	approval, err := h.admin.ApproveCodeRequest(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clientWithCode{Client: approval.Client, AccessCode: approval.AccessCode})
}

// RejectCodeRequest accepts an optional JSON body with a reason.
func (h *Handler) RejectCodeRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.admin.RejectCodeRequest(r.Context(), id, req.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (h *Handler) ListJobApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.admin.ListJobApplications(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}
