package handlers

import (
	"fmt"
	"net/http"

	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/gartstein/staffing/internal/pkg/utils"
)

type accessCodeRequest struct {
	AccessCode string `json:"access_code"`
}

type verifyResponse struct {
	Success bool                 `json:"success"`
	Client  models.ClientProfile `json:"client"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status models.JobStatus `json:"status"`
}

type bulkRequest struct {
	Clients []models.NewClientInput `json:"clients"`
}

type bulkResponse struct {
	Results   []models.BulkClientResult `json:"results"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
}

type clientWithCode struct {
	Client     *models.Client `json:"client"`
	AccessCode string         `json:"access_code"`
}

type accessCodeResponse struct {
	AccessCode string `json:"access_code"`
}

func summarizeBulk(results []models.BulkClientResult) bulkResponse {
	resp := bulkResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

// jobStatusFilter reads the optional ?status= query parameter.
func jobStatusFilter(r *http.Request) (*models.JobStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status := models.JobStatus(raw)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown job status %q", e.ErrValidation, raw)
	}
	return utils.Ptr(status), nil
}

// codeRequestStatusFilter reads the optional ?status= query parameter.
func codeRequestStatusFilter(r *http.Request) (*models.CodeRequestStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status := models.CodeRequestStatus(raw)
	switch status {
	case models.CodeRequestPending, models.CodeRequestApproved, models.CodeRequestRejected:
		return utils.Ptr(status), nil
	}
	return nil, fmt.Errorf("%w: unknown code request status %q", e.ErrValidation, raw)
}
