package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	repo, err := Open(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	repo.WithARNConfig(ARNConfig{Partition: "aws", Region: "us-east-1", AccountID: "000000000000"})
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func strPtr(s string) *string { return &s }

func TestCreateSecretAndGetSecretValue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	sec, ver, err := repo.CreateSecret(ctx, "my/secret", "a test secret", "", strPtr("hunter2"), nil, "", nil)
	if err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if sec.Name != "my/secret" {
		t.Errorf("Name = %q, want my/secret", sec.Name)
	}
	if !ver.HasStage(StageCurrent) {
		t.Errorf("initial version missing AWSCURRENT, stages=%v", ver.Stages)
	}

	_, gotVer, err := repo.GetSecretValue(ctx, "my/secret", "", "")
	if err != nil {
		t.Fatalf("GetSecretValue: %v", err)
	}
	if gotVer.SecretString == nil || *gotVer.SecretString != "hunter2" {
		t.Errorf("SecretString = %v, want hunter2", gotVer.SecretString)
	}
}

func TestCreateSecretDuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "dup", "", "", strPtr("a"), nil, "", nil); err != nil {
		t.Fatalf("first CreateSecret: %v", err)
	}
	if _, _, err := repo.CreateSecret(ctx, "dup", "", "", strPtr("b"), nil, "", nil); err != ErrAlreadyExists {
		t.Fatalf("second CreateSecret err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateSecretIdempotentOnMatchingToken(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	sec1, ver1, err := repo.CreateSecret(ctx, "idem", "", "", strPtr("same"), nil, "token-1", nil)
	if err != nil {
		t.Fatalf("first CreateSecret: %v", err)
	}
	sec2, ver2, err := repo.CreateSecret(ctx, "idem", "", "", strPtr("same"), nil, "token-1", nil)
	if err != nil {
		t.Fatalf("second CreateSecret (should be idempotent): %v", err)
	}
	if sec1.ID != sec2.ID || ver1.VersionID != ver2.VersionID {
		t.Errorf("idempotent retry returned a different secret/version")
	}
}

func TestPutSecretValuePromotesStages(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "rotate-me", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	sec, err := repo.DescribeSecret(ctx, "rotate-me")
	if err != nil {
		t.Fatalf("DescribeSecret: %v", err)
	}
	firstVer, err := getVersionByStage(ctx, repo.db, sec.ID, StageCurrent)
	if err != nil {
		t.Fatalf("getVersionByStage: %v", err)
	}

	_, newVer, err := repo.PutSecretValue(ctx, "rotate-me", strPtr("v2"), nil, "", nil)
	if err != nil {
		t.Fatalf("PutSecretValue: %v", err)
	}
	if newVer.VersionID == firstVer.VersionID {
		t.Fatalf("PutSecretValue did not create a new version")
	}
	if !newVer.HasStage(StageCurrent) {
		t.Errorf("new version missing AWSCURRENT")
	}

	prev, err := getVersionByStage(ctx, repo.db, sec.ID, StagePrevious)
	if err != nil {
		t.Fatalf("getVersionByStage(AWSPREVIOUS): %v", err)
	}
	if prev.VersionID != firstVer.VersionID {
		t.Errorf("AWSPREVIOUS = %s, want the original current version %s", prev.VersionID, firstVer.VersionID)
	}
}

func TestDeleteAndRestoreSecret(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "doomed", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if _, err := repo.DeleteSecret(ctx, "doomed", 7, false); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}

	if _, _, err := repo.GetSecretValue(ctx, "doomed", "", ""); err != ErrNotFound {
		t.Errorf("GetSecretValue on deleted secret err = %v, want ErrNotFound", err)
	}
	if _, err := repo.PutSecretValue(ctx, "doomed", strPtr("v2"), nil, "", nil); err != ErrAlreadyDeleted {
		t.Errorf("PutSecretValue on deleted secret err = %v, want ErrAlreadyDeleted", err)
	}

	restored, err := repo.RestoreSecret(ctx, "doomed")
	if err != nil {
		t.Fatalf("RestoreSecret: %v", err)
	}
	if restored.IsDeleted() {
		t.Errorf("restored secret still marked deleted")
	}
	if _, err := repo.RestoreSecret(ctx, "doomed"); err != ErrNotDeleted {
		t.Errorf("second RestoreSecret err = %v, want ErrNotDeleted", err)
	}
}

func TestDeleteForceWithoutRecoveryIsPermanent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "gone", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if _, err := repo.DeleteSecret(ctx, "gone", 0, true); err != nil {
		t.Fatalf("DeleteSecret(force): %v", err)
	}
	if _, err := repo.RestoreSecret(ctx, "gone"); err != ErrNotFound {
		t.Errorf("RestoreSecret on force-deleted secret err = %v, want ErrNotFound", err)
	}
}

func TestUpdateSecretVersionStageRejectsOrphaningCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "staged", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	sec, err := repo.DescribeSecret(ctx, "staged")
	if err != nil {
		t.Fatalf("DescribeSecret: %v", err)
	}
	cur, err := getVersionByStage(ctx, repo.db, sec.ID, StageCurrent)
	if err != nil {
		t.Fatalf("getVersionByStage: %v", err)
	}

	if _, err := repo.UpdateSecretVersionStage(ctx, "staged", StageCurrent, cur.VersionID, ""); err != ErrInvalidStage {
		t.Errorf("moving AWSCURRENT off with no destination err = %v, want ErrInvalidStage", err)
	}
}

func TestTagAndUntagResource(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, _, err := repo.CreateSecret(ctx, "tagged", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if err := repo.TagResource(ctx, "tagged", []TagRecord{{Key: "env", Value: "prod"}}); err != nil {
		t.Fatalf("TagResource: %v", err)
	}
	sec, err := repo.DescribeSecret(ctx, "tagged")
	if err != nil {
		t.Fatalf("DescribeSecret: %v", err)
	}
	if len(sec.Tags) != 1 || sec.Tags[0].Key != "env" || sec.Tags[0].Value != "prod" {
		t.Fatalf("Tags = %+v, want one env=prod tag", sec.Tags)
	}

	if err := repo.UntagResource(ctx, "tagged", []string{"env"}); err != nil {
		t.Fatalf("UntagResource: %v", err)
	}
	sec, err = repo.DescribeSecret(ctx, "tagged")
	if err != nil {
		t.Fatalf("DescribeSecret: %v", err)
	}
	if len(sec.Tags) != 0 {
		t.Fatalf("Tags = %+v, want none after untag", sec.Tags)
	}
}

func TestListSecretsFilterByNamePrefixCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, name := range []string{"Prod/db", "prod/cache", "staging/db"} {
		if _, _, err := repo.CreateSecret(ctx, name, "", "", strPtr("x"), nil, "", nil); err != nil {
			t.Fatalf("CreateSecret(%s): %v", name, err)
		}
	}

	res, err := repo.ListSecrets(ctx, ListSecretsOptions{
		Filters: []ListFilter{{Key: "name", Values: []string{"PROD/"}}},
	})
	if err != nil {
		t.Fatalf("ListSecrets: %v", err)
	}
	if len(res.Secrets) != 2 {
		t.Fatalf("got %d secrets, want 2 (case-insensitive prefix match)", len(res.Secrets))
	}
}

func TestListSecretsPaginationTokenBoundToFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for i := 0; i < 3; i++ {
		name := string(rune('a'+i)) + "-secret"
		if _, _, err := repo.CreateSecret(ctx, name, "", "", strPtr("x"), nil, "", nil); err != nil {
			t.Fatalf("CreateSecret: %v", err)
		}
	}

	page1, err := repo.ListSecrets(ctx, ListSecretsOptions{MaxResults: 1, SortAscending: true})
	if err != nil {
		t.Fatalf("ListSecrets page1: %v", err)
	}
	if page1.NextToken == "" {
		t.Fatalf("expected a NextToken for a partial page")
	}

	if _, err := repo.ListSecrets(ctx, ListSecretsOptions{
		MaxResults:    1,
		SortAscending: true,
		NextToken:     page1.NextToken,
		Filters:       []ListFilter{{Key: "name", Values: []string{"z"}}},
	}); err != ErrInvalidNextToken {
		t.Errorf("token reused against different filters err = %v, want ErrInvalidNextToken", err)
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "persisted.db")

	repo, err := Open(path, "passphrase-one")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	repo.WithARNConfig(ARNConfig{Partition: "aws", Region: "us-east-1", AccountID: "000000000000"})
	if _, _, err := repo.CreateSecret(ctx, "durable", "", "", strPtr("v1"), nil, "", nil); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("container file missing after Close: %v", err)
	}

	repo2, err := Open(path, "passphrase-one")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo2.Close()
	if _, _, err := repo2.GetSecretValue(ctx, "durable", "", ""); err != nil {
		t.Fatalf("GetSecretValue after reopen: %v", err)
	}

	if _, err := Open(path, "wrong-passphrase"); err == nil {
		t.Fatalf("Open with wrong passphrase should have failed")
	}
}
