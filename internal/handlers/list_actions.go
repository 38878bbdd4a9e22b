package handlers

import (
	"net/http"
	"strings"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	"github.com/bleepforge/secretsmanager/internal/store"
)

// wireFilter mirrors the wire protocol's Filters entry. Negation is
// expressed per AWS convention by a "!" prefix on a value; this server
// applies it to the whole filter, matching internal/store.ListFilter's
// single Negate flag (storing per-value negation would require a second
// predicate dimension the repository does not model).
type wireFilter struct {
	Key    string   `json:"Key"`
	Values []string `json:"Values"`
}

func toStoreFilters(filters []wireFilter) []store.ListFilter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]store.ListFilter, len(filters))
	for i, f := range filters {
		negate := false
		values := make([]string, len(f.Values))
		for j, v := range f.Values {
			if strings.HasPrefix(v, "!") {
				negate = true
				v = v[1:]
			}
			values[j] = v
		}
		out[i] = store.ListFilter{Key: f.Key, Values: values, Negate: negate}
	}
	return out
}

// --- ListSecrets ---

type listSecretsRequest struct {
	Filters        []wireFilter `json:"Filters"`
	IncludeDeleted bool         `json:"IncludeDeleted"`
	MaxResults     int          `json:"MaxResults"`
	NextToken      string       `json:"NextToken"`
	SortOrder      string       `json:"SortOrder"`
}

type secretListEntry struct {
	ARN                    string              `json:"ARN"`
	Name                   string              `json:"Name"`
	Description            string              `json:"Description,omitempty"`
	KmsKeyId               string              `json:"KmsKeyId,omitempty"`
	LastAccessedDate       *float64            `json:"LastAccessedDate,omitempty"`
	LastChangedDate        float64             `json:"LastChangedDate"`
	DeletedDate            *float64            `json:"DeletedDate,omitempty"`
	Tags                   []wireTag           `json:"Tags,omitempty"`
	SecretVersionsToStages map[string][]string `json:"SecretVersionsToStages,omitempty"`
	CreatedDate            float64             `json:"CreatedDate"`
}

type listSecretsResponse struct {
	SecretList []secretListEntry `json:"SecretList"`
	NextToken  string            `json:"NextToken,omitempty"`
}

func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	const action = "ListSecrets"
	var req listSecretsRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.MaxResults < 0 || req.MaxResults > 100 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("MaxResults must be between 1 and 100"))
		return
	}
	if req.SortOrder != "" && req.SortOrder != "asc" && req.SortOrder != "desc" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SortOrder must be \"asc\" or \"desc\""))
		return
	}

	opts := store.ListSecretsOptions{
		Filters:        toStoreFilters(req.Filters),
		IncludeDeleted: req.IncludeDeleted,
		MaxResults:     req.MaxResults,
		NextToken:      req.NextToken,
		SortAscending:  req.SortOrder == "asc",
	}

	result, err := h.repo.ListSecrets(r.Context(), opts)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	entries := make([]secretListEntry, len(result.Secrets))
	for i, sec := range result.Secrets {
		entries[i] = secretListEntry{
			ARN:              sec.ARN,
			Name:             sec.Name,
			Description:      sec.Description,
			KmsKeyId:         sec.KMSKeyID,
			LastAccessedDate: unixSecondsPtr(sec.LastAccessedDate),
			LastChangedDate:  unixSeconds(sec.LastChangedDate),
			DeletedDate:      unixSecondsPtr(sec.DeletedAt),
			Tags:             wireTags(sec.Tags),
			CreatedDate:      unixSeconds(sec.CreatedAt),
		}
	}
	writeJSON(w, action, listSecretsResponse{SecretList: entries, NextToken: result.NextToken})
}

// --- ListSecretVersionIds ---

type listSecretVersionIdsRequest struct {
	SecretId          string `json:"SecretId"`
	MaxResults        int    `json:"MaxResults"`
	NextToken         string `json:"NextToken"`
	IncludeDeprecated bool   `json:"IncludeDeprecated"`
}

type secretVersionEntry struct {
	VersionId        string   `json:"VersionId"`
	VersionStages    []string `json:"VersionStages,omitempty"`
	CreatedDate      float64  `json:"CreatedDate"`
	LastAccessedDate *float64 `json:"LastAccessedDate,omitempty"`
}

type listSecretVersionIdsResponse struct {
	ARN      string               `json:"ARN"`
	Name     string               `json:"Name"`
	Versions []secretVersionEntry `json:"Versions"`
}

func (h *Handler) ListSecretVersionIds(w http.ResponseWriter, r *http.Request) {
	const action = "ListSecretVersionIds"
	var req listSecretVersionIdsRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.SecretId == "" {
		writeError(w, action, apierr.ErrValidation.WithMessage("SecretId is required"))
		return
	}

	sec, versions, err := h.repo.ListSecretVersionIds(r.Context(), req.SecretId, req.IncludeDeprecated)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	entries := make([]secretVersionEntry, len(versions))
	for i, v := range versions {
		entries[i] = secretVersionEntry{
			VersionId:     v.VersionID,
			VersionStages: v.Stages,
			CreatedDate:   unixSeconds(v.CreatedAt),
		}
	}
	writeJSON(w, action, listSecretVersionIdsResponse{ARN: sec.ARN, Name: sec.Name, Versions: entries})
}

// --- BatchGetSecretValue ---

type batchGetSecretValueRequest struct {
	SecretIdList []string     `json:"SecretIdList"`
	Filters      []wireFilter `json:"Filters"`
	MaxResults   int          `json:"MaxResults"`
	NextToken    string       `json:"NextToken"`
}

type batchGetSecretValueError struct {
	SecretId  string `json:"SecretId"`
	ErrorCode string `json:"ErrorCode"`
	Message   string `json:"Message"`
}

type batchGetSecretValueResponse struct {
	SecretValues []getSecretValueResponse   `json:"SecretValues"`
	Errors       []batchGetSecretValueError `json:"Errors,omitempty"`
}

func (h *Handler) BatchGetSecretValue(w http.ResponseWriter, r *http.Request) {
	const action = "BatchGetSecretValue"
	var req batchGetSecretValueRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if len(req.SecretIdList) > 0 && len(req.Filters) > 0 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("SecretIdList and Filters are mutually exclusive"))
		return
	}
	if len(req.SecretIdList) > 20 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("SecretIdList accepts at most 20 entries"))
		return
	}

	var filterOpts *store.ListSecretsOptions
	if len(req.Filters) > 0 {
		filterOpts = &store.ListSecretsOptions{
			Filters:    toStoreFilters(req.Filters),
			MaxResults: req.MaxResults,
			NextToken:  req.NextToken,
		}
	}

	secrets, versions, errored, err := h.repo.BatchGetSecretValue(r.Context(), req.SecretIdList, filterOpts)
	if err != nil {
		writeError(w, action, storeErr(err))
		return
	}

	values := make([]getSecretValueResponse, len(secrets))
	for i := range secrets {
		values[i] = getSecretValueResponse{
			ARN:           secrets[i].ARN,
			Name:          secrets[i].Name,
			VersionId:     versions[i].VersionID,
			SecretString:  versions[i].SecretString,
			SecretBinary:  versions[i].SecretBinary,
			VersionStages: versions[i].Stages,
			CreatedDate:   unixSeconds(versions[i].CreatedAt),
		}
	}
	errs := make([]batchGetSecretValueError, len(errored))
	for i, name := range errored {
		errs[i] = batchGetSecretValueError{
			SecretId:  name,
			ErrorCode: apierr.ErrResourceNotFound.Type,
			Message:   apierr.ErrResourceNotFound.Message,
		}
	}
	writeJSON(w, action, batchGetSecretValueResponse{SecretValues: values, Errors: errs})
}
