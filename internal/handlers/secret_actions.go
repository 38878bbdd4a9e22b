package handlers

import (
	"net/http"
	"time"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	"github.com/bleepforge/secretsmanager/internal/store"
)

// wireTag is the {Key,Value} shape used on the wire for a secret's tags.
type wireTag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

func wireTags(tags []store.TagRecord) []wireTag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]wireTag, len(tags))
	for i, t := range tags {
		out[i] = wireTag{Key: t.Key, Value: t.Value}
	}
	return out
}

func storeTags(tags []wireTag) []store.TagRecord {
	if len(tags) == 0 {
		return nil
	}
	out := make([]store.TagRecord, len(tags))
	for i, t := range tags {
		out[i] = store.TagRecord{Key: t.Key, Value: t.Value}
	}
	return out
}

// unixSeconds renders a timestamp the way the wire protocol expects:
// Unix time as a JSON fractional-seconds number.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func unixSecondsPtr(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	v := unixSeconds(*t)
	return &v
}

// --- CreateSecret ---

type createSecretRequest struct {
	Name                       string    `json:"Name"`
	Description                string    `json:"Description"`
	KmsKeyId                   string    `json:"KmsKeyId"`
	SecretString               *string   `json:"SecretString"`
	SecretBinary               []byte    `json:"SecretBinary"`
	ClientRequestToken         string    `json:"ClientRequestToken"`
	Tags                       []wireTag `json:"Tags"`
	ForceOverwriteReplicaSecret bool     `json:"ForceOverwriteReplicaSecret"`
}

type createSecretResponse struct {
	ARN       string `json:"ARN"`
	Name      string `json:"Name"`
	VersionId string `json:"VersionId,omitempty"`
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	const action = "CreateSecret"
	var req createSecretRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if apiErr := validateSecretName(req.Name); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if apiErr := validateDescription(req.Description); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if apiErr := exactlyOnePayload(req.SecretString, req.SecretBinary); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if apiErr := validateTags(req.Tags); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}

	sec, ver, err := h.repo.CreateSecret(r.Context(), req.Name, req.Description, req.KmsKeyId,
		req.SecretString, req.SecretBinary, req.ClientRequestToken, storeTags(req.Tags))
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	resp := createSecretResponse{ARN: sec.ARN, Name: sec.Name}
	if ver != nil {
		resp.VersionId = ver.VersionID
	}
	writeJSON(w, action, resp)
}

// --- GetSecretValue ---

type getSecretValueRequest struct {
	SecretId     string `json:"SecretId"`
	VersionId    string `json:"VersionId"`
	VersionStage string `json:"VersionStage"`
}

type getSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionId     string   `json:"VersionId"`
	SecretString  *string  `json:"SecretString,omitempty"`
	SecretBinary  []byte   `json:"SecretBinary,omitempty"`
	VersionStages []string `json:"VersionStages"`
	CreatedDate   float64  `json:"CreatedDate"`
}

func (h *Handler) GetSecretValue(w http.ResponseWriter, r *http.Request) {
	const action = "GetSecretValue"
	var req getSecretValueRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}
	if req.VersionId != "" && req.VersionStage != "" {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("VersionId and VersionStage are mutually exclusive"))
		return
	}

	sec, ver, err := h.repo.GetSecretValue(r.Context(), req.SecretId, req.VersionId, req.VersionStage)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	writeJSON(w, action, getSecretValueResponse{
		ARN:           sec.ARN,
		Name:          sec.Name,
		VersionId:     ver.VersionID,
		SecretString:  ver.SecretString,
		SecretBinary:  ver.SecretBinary,
		VersionStages: ver.Stages,
		CreatedDate:   unixSeconds(ver.CreatedAt),
	})
}

// --- PutSecretValue ---

type putSecretValueRequest struct {
	SecretId           string   `json:"SecretId"`
	SecretString       *string  `json:"SecretString"`
	SecretBinary       []byte   `json:"SecretBinary"`
	ClientRequestToken string   `json:"ClientRequestToken"`
	VersionStages      []string `json:"VersionStages"`
}

type putSecretValueResponse struct {
	ARN           string   `json:"ARN"`
	Name          string   `json:"Name"`
	VersionId     string   `json:"VersionId"`
	VersionStages []string `json:"VersionStages"`
}

func (h *Handler) PutSecretValue(w http.ResponseWriter, r *http.Request) {
	const action = "PutSecretValue"
	var req putSecretValueRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}
	if apiErr := exactlyOnePayload(req.SecretString, req.SecretBinary); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretString == nil && len(req.SecretBinary) == 0 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("one of SecretString or SecretBinary is required"))
		return
	}
	stages := req.VersionStages
	if len(stages) == 0 {
		stages = []string{store.StageCurrent}
	}

	sec, ver, err := h.repo.PutSecretValue(r.Context(), req.SecretId, req.SecretString, req.SecretBinary, req.ClientRequestToken, stages)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	writeJSON(w, action, putSecretValueResponse{
		ARN:           sec.ARN,
		Name:          sec.Name,
		VersionId:     ver.VersionID,
		VersionStages: ver.Stages,
	})
}

// --- UpdateSecret ---

type updateSecretRequest struct {
	SecretId           string  `json:"SecretId"`
	Description        *string `json:"Description"`
	KmsKeyId           *string `json:"KmsKeyId"`
	SecretString       *string `json:"SecretString"`
	SecretBinary       []byte  `json:"SecretBinary"`
	ClientRequestToken string  `json:"ClientRequestToken"`
}

type updateSecretResponse struct {
	ARN       string `json:"ARN"`
	Name      string `json:"Name"`
	VersionId string `json:"VersionId,omitempty"`
}

func (h *Handler) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	const action = "UpdateSecret"
	var req updateSecretRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}
	if req.Description != nil {
		if apiErr := validateDescription(*req.Description); apiErr != nil {
			writeError(w, action, apiErr)
			return
		}
	}
	if apiErr := exactlyOnePayload(req.SecretString, req.SecretBinary); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}

	sec, err := h.repo.UpdateSecret(r.Context(), req.SecretId, req.Description, req.KmsKeyId,
		req.SecretString, req.SecretBinary, req.ClientRequestToken)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	resp := updateSecretResponse{ARN: sec.ARN, Name: sec.Name}
	writeJSON(w, action, resp)
}

// --- DeleteSecret ---

type deleteSecretRequest struct {
	SecretId                   string `json:"SecretId"`
	RecoveryWindowInDays       *int64 `json:"RecoveryWindowInDays"`
	ForceDeleteWithoutRecovery bool   `json:"ForceDeleteWithoutRecovery"`
}

type deleteSecretResponse struct {
	ARN          string  `json:"ARN"`
	Name         string  `json:"Name"`
	DeletionDate float64 `json:"DeletionDate"`
}

func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	const action = "DeleteSecret"
	var req deleteSecretRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}
	if req.RecoveryWindowInDays != nil && req.ForceDeleteWithoutRecovery {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("RecoveryWindowInDays and ForceDeleteWithoutRecovery are mutually exclusive"))
		return
	}
	if apiErr := validateRecoveryWindow(req.RecoveryWindowInDays); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}

	days := 30
	if req.RecoveryWindowInDays != nil {
		days = int(*req.RecoveryWindowInDays)
	}

	sec, err := h.repo.DeleteSecret(r.Context(), req.SecretId, days, req.ForceDeleteWithoutRecovery)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	var deletionDate float64
	if sec.DeletedAt != nil {
		deletionDate = unixSeconds(*sec.DeletedAt)
	}
	writeJSON(w, action, deleteSecretResponse{ARN: sec.ARN, Name: sec.Name, DeletionDate: deletionDate})
}

// --- RestoreSecret ---

type restoreSecretRequest struct {
	SecretId string `json:"SecretId"`
}

type restoreSecretResponse struct {
	ARN  string `json:"ARN"`
	Name string `json:"Name"`
}

func (h *Handler) RestoreSecret(w http.ResponseWriter, r *http.Request) {
	const action = "RestoreSecret"
	var req restoreSecretRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}

	sec, err := h.repo.RestoreSecret(r.Context(), req.SecretId)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}
	writeJSON(w, action, restoreSecretResponse{ARN: sec.ARN, Name: sec.Name})
}

// --- DescribeSecret ---

type describeSecretResponse struct {
	ARN                string             `json:"ARN"`
	Name               string             `json:"Name"`
	Description        string             `json:"Description,omitempty"`
	KmsKeyId           string             `json:"KmsKeyId,omitempty"`
	LastAccessedDate   *float64           `json:"LastAccessedDate,omitempty"`
	LastChangedDate    float64            `json:"LastChangedDate"`
	DeletedDate        *float64           `json:"DeletedDate,omitempty"`
	Tags               []wireTag          `json:"Tags,omitempty"`
	VersionIdsToStages map[string][]string `json:"VersionIdsToStages,omitempty"`
	CreatedDate        float64            `json:"CreatedDate"`
}

func (h *Handler) DescribeSecret(w http.ResponseWriter, r *http.Request) {
	const action = "DescribeSecret"
	var req restoreSecretRequest // same {SecretId} shape
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}

	sec, err := h.repo.DescribeSecret(r.Context(), req.SecretId)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}
	_, versions, err := h.repo.ListSecretVersionIds(r.Context(), req.SecretId, false)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	stages := make(map[string][]string, len(versions))
	for _, v := range versions {
		if len(v.Stages) > 0 {
			stages[v.VersionID] = v.Stages
		}
	}

	resp := describeSecretResponse{
		ARN:                sec.ARN,
		Name:               sec.Name,
		Description:        sec.Description,
		KmsKeyId:           sec.KMSKeyID,
		LastAccessedDate:   unixSecondsPtr(sec.LastAccessedDate),
		LastChangedDate:    unixSeconds(sec.LastChangedDate),
		DeletedDate:        unixSecondsPtr(sec.DeletedAt),
		Tags:               wireTags(sec.Tags),
		VersionIdsToStages: stages,
		CreatedDate:        unixSeconds(sec.CreatedAt),
	}
	writeJSON(w, action, resp)
}
