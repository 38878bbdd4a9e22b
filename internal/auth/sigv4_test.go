package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	secretscrypto "github.com/bleepforge/secretsmanager/internal/crypto"
)

const (
	testAccessKey = "AKIAEXAMPLE000000000"
	testSecretKey = "examplesecretkey1234567890examplesecret"
	testRegion    = "us-east-1"
)

func bodyReader(body []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(body))
}

func apiErrType(err error) string {
	apiErr, ok := err.(*apierr.APIError)
	if !ok {
		return ""
	}
	return apiErr.Type
}

// signRequest signs r with the test principal as of t and sets the
// Authorization, X-Amz-Date, and X-Amz-Content-Sha256 headers in place.
func signRequest(t *testing.T, r *http.Request, body []byte, at time.Time) {
	t.Helper()

	amzDate := at.UTC().Format(amzDateFormat)
	dateStr := amzDate[:8]

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	r.Header.Set("X-Amz-Date", amzDate)
	r.Header.Set("X-Amz-Content-Sha256", payloadHash)

	signedHeaders := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	canonicalRequest := buildCanonicalRequest(r, signedHeaders)
	scope := dateStr + "/" + testRegion + "/" + service + "/" + scopeTerminator
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signingKey := deriveSigningKey(testSecretKey, dateStr, testRegion)
	signature := hex.EncodeToString(secretscrypto.HMACSHA256(signingKey, stringToSign))

	auth := algorithm + " Credential=" + testAccessKey + "/" + scope +
		", SignedHeaders=" + strings.Join(signedHeaders, ";") +
		", Signature=" + signature
	r.Header.Set("Authorization", auth)
}

func newSignedRequest(t *testing.T, method, target string, body []byte, at time.Time) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, target, bodyReader(body))
	r.Host = "secretsmanager.example.com"
	signRequest(t, r, body, at)
	return r
}

func testVerifier() *SigV4Verifier {
	return NewSigV4Verifier(Principal{AccessKeyID: testAccessKey, SecretAccessKey: testSecretKey})
}

func TestVerifyRequestValidSignature(t *testing.T) {
	now := time.Now().UTC()
	r := newSignedRequest(t, http.MethodPost, "/", []byte(`{"SecretId":"foo"}`), now)
	if err := testVerifier().VerifyRequest(r); err != nil {
		t.Fatalf("VerifyRequest: %v", err)
	}
}

func TestVerifyRequestMissingAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", bodyReader(nil))
	if err := testVerifier().VerifyRequest(r); err != apierr.ErrMissingAuthenticationToken {
		t.Fatalf("err = %v, want ErrMissingAuthenticationToken", err)
	}
}

func TestVerifyRequestWrongAccessKeyID(t *testing.T) {
	now := time.Now().UTC()
	r := newSignedRequest(t, http.MethodPost, "/", []byte(`{}`), now)
	r.Header.Set("Authorization", strings.Replace(r.Header.Get("Authorization"), testAccessKey, "AKIAOTHERKEY00000000", 1))
	if err := testVerifier().VerifyRequest(r); apiErrType(err) != "InvalidClientTokenIdException" {
		t.Fatalf("err = %v, want InvalidClientTokenIdException", err)
	}
}

func TestVerifyRequestExpiredClockSkew(t *testing.T) {
	stale := time.Now().UTC().Add(-1 * time.Hour)
	r := newSignedRequest(t, http.MethodPost, "/", []byte(`{}`), stale)
	if err := testVerifier().VerifyRequest(r); apiErrType(err) != "ExpiredTokenException" {
		t.Fatalf("err = %v, want ExpiredTokenException", err)
	}
}

func TestVerifyRequestCustomClockSkewAllowsOlderRequest(t *testing.T) {
	stale := time.Now().UTC().Add(-20 * time.Minute)
	r := newSignedRequest(t, http.MethodPost, "/", []byte(`{}`), stale)
	v := testVerifier()
	v.ClockSkew = 30 * time.Minute
	if err := v.VerifyRequest(r); err != nil {
		t.Fatalf("VerifyRequest with widened clock skew: %v", err)
	}
}

func TestVerifyRequestTamperedBodyFailsSignature(t *testing.T) {
	now := time.Now().UTC()
	r := newSignedRequest(t, http.MethodPost, "/", []byte(`{"SecretId":"foo"}`), now)
	r.Body = bodyReader([]byte(`{"SecretId":"bar"}`))
	if err := testVerifier().VerifyRequest(r); apiErrType(err) != "SignatureDoesNotMatchException" {
		t.Fatalf("err = %v, want SignatureDoesNotMatchException", err)
	}
}

func TestVerifyRequestUnsignedHostHeaderRejected(t *testing.T) {
	now := time.Now().UTC()
	amzDate := now.Format(amzDateFormat)
	dateStr := amzDate[:8]

	body := []byte(`{}`)
	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	r := httptest.NewRequest(http.MethodPost, "/", bodyReader(body))
	r.Host = "secretsmanager.example.com"
	r.Header.Set("X-Amz-Date", amzDate)
	r.Header.Set("X-Amz-Content-Sha256", payloadHash)

	signedHeaders := []string{"x-amz-content-sha256", "x-amz-date"}
	canonicalRequest := buildCanonicalRequest(r, signedHeaders)
	scope := dateStr + "/" + testRegion + "/" + service + "/" + scopeTerminator
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signingKey := deriveSigningKey(testSecretKey, dateStr, testRegion)
	signature := hex.EncodeToString(secretscrypto.HMACSHA256(signingKey, stringToSign))

	r.Header.Set("Authorization", algorithm+" Credential="+testAccessKey+"/"+scope+
		", SignedHeaders="+strings.Join(signedHeaders, ";")+", Signature="+signature)

	if err := testVerifier().VerifyRequest(r); apiErrType(err) != "IncompleteSignatureException" {
		t.Fatalf("err = %v, want IncompleteSignatureException (host not signed)", err)
	}
}

func TestVerifyRequestMalformedAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", bodyReader(nil))
	r.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=bad")
	if err := testVerifier().VerifyRequest(r); apiErrType(err) != "IncompleteSignatureException" {
		t.Fatalf("err = %v, want IncompleteSignatureException", err)
	}
}
