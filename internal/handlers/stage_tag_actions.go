package handlers

import (
	"net/http"

	"github.com/bleepforge/secretsmanager/internal/apierr"
)

// --- UpdateSecretVersionStage ---

type updateSecretVersionStageRequest struct {
	SecretId             string `json:"SecretId"`
	VersionStage         string `json:"VersionStage"`
	RemoveFromVersionId  string `json:"RemoveFromVersionId"`
	MoveToVersionId      string `json:"MoveToVersionId"`
}

type updateSecretVersionStageResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

func (h *Handler) UpdateSecretVersionStage(w http.ResponseWriter, r *http.Request) {
	const action = "UpdateSecretVersionStage"
	var req updateSecretVersionStageRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" || req.VersionStage == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId and VersionStage are required"))
		return
	}
	if len(req.VersionStage) > 256 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("VersionStage must be 256 characters or fewer"))
		return
	}
	if req.RemoveFromVersionId == "" && req.MoveToVersionId == "" {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("one of RemoveFromVersionId or MoveToVersionId is required"))
		return
	}

	sec, err := h.repo.UpdateSecretVersionStage(r.Context(), req.SecretId, req.VersionStage, req.RemoveFromVersionId, req.MoveToVersionId)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}
	writeJSON(w, action, updateSecretVersionStageResponse{ARN: sec.ARN, Name: sec.Name})
}

// --- TagResource / UntagResource ---

type tagResourceRequest struct {
	SecretId string    `json:"SecretId"`
	Tags     []wireTag `json:"Tags"`
}

func (h *Handler) TagResource(w http.ResponseWriter, r *http.Request) {
	const action = "TagResource"
	var req tagResourceRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}
	if apiErr := validateTags(req.Tags); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}

	if err := h.repo.TagResource(r.Context(), req.SecretId, storeTags(req.Tags)); err != nil {
		writeError(w, action, storeErr(err))
		return
	}
	writeJSON(w, action, struct{}{})
}

type untagResourceRequest struct {
	SecretId string   `json:"SecretId"`
	TagKeys  []string `json:"TagKeys"`
}

func (h *Handler) UntagResource(w http.ResponseWriter, r *http.Request) {
	const action = "UntagResource"
	var req untagResourceRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}

	if err := h.repo.UntagResource(r.Context(), req.SecretId, req.TagKeys); err != nil {
		writeError(w, action, storeErr(err))
		return
	}
	writeJSON(w, action, struct{}{})
}
