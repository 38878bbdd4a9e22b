package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bleepforge/secretsmanager/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	repo, err := store.Open(filepath.Join(dir, "store.db"), "correct horse battery staple")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	repo.WithARNConfig(store.ARNConfig{Partition: "aws", Region: "us-east-1", AccountID: "000000000000"})
	t.Cleanup(func() { repo.Close() })
	return New(repo)
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.ContentLength = int64(len(data))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
}

func TestCreateAndGetSecretValue(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h.CreateSecret, createSecretRequest{
		Name:               "my/secret",
		SecretString:       strPtr("hunter2"),
		ClientRequestToken: "t1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("CreateSecret status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created createSecretResponse
	decodeInto(t, rec, &created)
	if created.VersionId != "t1" {
		t.Errorf("VersionId = %q, want t1", created.VersionId)
	}

	rec = postJSON(t, h.GetSecretValue, getSecretValueRequest{SecretId: "my/secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GetSecretValue status = %d body = %s", rec.Code, rec.Body.String())
	}
	var got getSecretValueResponse
	decodeInto(t, rec, &got)
	if got.SecretString == nil || *got.SecretString != "hunter2" {
		t.Errorf("SecretString = %v, want hunter2", got.SecretString)
	}
	if got.VersionStages[0] != store.StageCurrent {
		t.Errorf("VersionStages = %v, want [AWSCURRENT]", got.VersionStages)
	}
}

func TestCreateSecretValidatesName(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h.CreateSecret, createSecretRequest{SecretString: strPtr("x")})
	var body map[string]string
	decodeInto(t, rec, &body)
	if body["__type"] != "ValidationException" {
		t.Fatalf("__type = %q, want ValidationException", body["__type"])
	}
}

func TestGetSecretValueNotFound(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h.GetSecretValue, getSecretValueRequest{SecretId: "nope"})
	var body map[string]string
	decodeInto(t, rec, &body)
	if body["__type"] != "ResourceNotFoundException" {
		t.Fatalf("__type = %q, want ResourceNotFoundException", body["__type"])
	}
}

func TestPutSecretValuePromotesPreviousStage(t *testing.T) {
	h := newTestHandler(t)
	postJSON(t, h.CreateSecret, createSecretRequest{Name: "rotate-me", SecretString: strPtr("v1"), ClientRequestToken: "t1"})

	rec := postJSON(t, h.PutSecretValue, putSecretValueRequest{SecretId: "rotate-me", SecretString: strPtr("v2"), ClientRequestToken: "t2"})
	var put putSecretValueResponse
	decodeInto(t, rec, &put)
	if put.VersionId != "t2" {
		t.Fatalf("VersionId = %q, want t2", put.VersionId)
	}

	rec = postJSON(t, h.GetSecretValue, getSecretValueRequest{SecretId: "rotate-me", VersionStage: store.StagePrevious})
	var prev getSecretValueResponse
	decodeInto(t, rec, &prev)
	if prev.VersionId != "t1" {
		t.Fatalf("AWSPREVIOUS VersionId = %q, want t1", prev.VersionId)
	}
}

func TestDeleteSecretRejectsMutuallyExclusiveFlags(t *testing.T) {
	h := newTestHandler(t)
	postJSON(t, h.CreateSecret, createSecretRequest{Name: "doomed", SecretString: strPtr("v1")})

	days := int64(10)
	rec := postJSON(t, h.DeleteSecret, deleteSecretRequest{SecretId: "doomed", RecoveryWindowInDays: &days, ForceDeleteWithoutRecovery: true})
	var body map[string]string
	decodeInto(t, rec, &body)
	if body["__type"] != "InvalidParameterException" {
		t.Fatalf("__type = %q, want InvalidParameterException", body["__type"])
	}
}

func TestDeleteThenGetSecretValueIsInvalidRequest(t *testing.T) {
	h := newTestHandler(t)
	postJSON(t, h.CreateSecret, createSecretRequest{Name: "doomed2", SecretString: strPtr("v1")})
	postJSON(t, h.DeleteSecret, deleteSecretRequest{SecretId: "doomed2"})

	rec := postJSON(t, h.GetSecretValue, getSecretValueRequest{SecretId: "doomed2"})
	var body map[string]string
	decodeInto(t, rec, &body)
	if body["__type"] != "InvalidRequestException" {
		t.Fatalf("__type = %q, want InvalidRequestException", body["__type"])
	}
}

func TestTagAndUntagResource(t *testing.T) {
	h := newTestHandler(t)
	postJSON(t, h.CreateSecret, createSecretRequest{Name: "tagged", SecretString: strPtr("v1")})

	postJSON(t, h.TagResource, tagResourceRequest{SecretId: "tagged", Tags: []wireTag{{Key: "env", Value: "prod"}}})

	rec := postJSON(t, h.DescribeSecret, restoreSecretRequest{SecretId: "tagged"})
	var desc describeSecretResponse
	decodeInto(t, rec, &desc)
	if len(desc.Tags) != 1 || desc.Tags[0].Key != "env" {
		t.Fatalf("Tags = %+v, want one env=prod tag", desc.Tags)
	}

	postJSON(t, h.UntagResource, untagResourceRequest{SecretId: "tagged", TagKeys: []string{"env"}})
	rec = postJSON(t, h.DescribeSecret, restoreSecretRequest{SecretId: "tagged"})
	decodeInto(t, rec, &desc)
	if len(desc.Tags) != 0 {
		t.Fatalf("Tags = %+v, want none after untag", desc.Tags)
	}
}

func strPtr(s string) *string { return &s }
