// Package auth implements AWS Signature Version 4 request authentication
// against a single, statically provisioned principal.
package auth

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bleepforge/secretsmanager/internal/apierr"
	secretscrypto "github.com/bleepforge/secretsmanager/internal/crypto"
)

const (
	// algorithm is the signing algorithm identifier.
	algorithm = "AWS4-HMAC-SHA256"

	// scopeTerminator is the fixed suffix of the credential scope.
	scopeTerminator = "aws4_request"

	// service is the service name in the credential scope.
	service = "secretsmanager"

	// unsignedPayload is the constant used when payload verification is skipped.
	unsignedPayload = "UNSIGNED-PAYLOAD"

	// emptySHA256 is the SHA-256 hash of an empty string.
	emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// DefaultClockSkew is the default tolerance between the request's
	// x-amz-date and the server clock.
	DefaultClockSkew = 5 * time.Minute

	// amzDateFormat is the format for x-amz-date values.
	amzDateFormat = "20060102T150405Z"
)

// Principal is the single statically provisioned identity the verifier
// checks requests against. Multi-tenancy is out of scope: there is exactly
// one access key id / secret access key pair for the whole server.
type Principal struct {
	AccessKeyID     string
	SecretAccessKey string
}

// SigV4Verifier verifies AWS Signature Version 4 signed requests against a
// single configured Principal. Unlike a multi-tenant verifier it never
// looks anything up — the access key comparison and signature computation
// are the entire check.
type SigV4Verifier struct {
	Principal  Principal
	ClockSkew  time.Duration // 0 means DefaultClockSkew.
}

// NewSigV4Verifier creates a verifier for the given principal, with the
// default ±5 minute clock-skew tolerance.
func NewSigV4Verifier(principal Principal) *SigV4Verifier {
	return &SigV4Verifier{Principal: principal, ClockSkew: DefaultClockSkew}
}

func (v *SigV4Verifier) clockSkew() time.Duration {
	if v.ClockSkew <= 0 {
		return DefaultClockSkew
	}
	return v.ClockSkew
}

// parsedAuth holds the parsed components of an Authorization header.
type parsedAuth struct {
	AccessKeyID   string
	DateStr       string // YYYYMMDD
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

// parseAuthorizationHeader parses the AWS SigV4 Authorization header.
// Format: AWS4-HMAC-SHA256 Credential=AKID/date/region/service/aws4_request, SignedHeaders=host;..., Signature=hex
func parseAuthorizationHeader(header string) (*parsedAuth, error) {
	if !strings.HasPrefix(header, algorithm+" ") {
		return nil, fmt.Errorf("unsupported algorithm")
	}
	rest := strings.TrimPrefix(header, algorithm+" ")

	parts := make(map[string]string)
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		idx := strings.IndexByte(part, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(part[:idx])
		value := strings.TrimSpace(part[idx+1:])
		parts[key] = value
	}

	credential, ok := parts["Credential"]
	if !ok || credential == "" {
		return nil, fmt.Errorf("missing Credential")
	}
	signedHeadersStr, ok := parts["SignedHeaders"]
	if !ok || signedHeadersStr == "" {
		return nil, fmt.Errorf("missing SignedHeaders")
	}
	signature, ok := parts["Signature"]
	if !ok || signature == "" {
		return nil, fmt.Errorf("missing Signature")
	}

	credParts := strings.SplitN(credential, "/", 5)
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid credential format")
	}
	if credParts[4] != scopeTerminator {
		return nil, fmt.Errorf("invalid credential scope terminator: %s", credParts[4])
	}

	return &parsedAuth{
		AccessKeyID:   credParts[0],
		DateStr:       credParts[1],
		Region:        credParts[2],
		Service:       credParts[3],
		SignedHeaders: strings.Split(signedHeadersStr, ";"),
		Signature:     signature,
	}, nil
}

// VerifyRequest validates the AWS SigV4 signature on the given HTTP request
// using the Authorization header. It returns a typed *apierr.APIError on
// any failure, chosen to match the taxonomy the wire protocol expects.
//
// Verification always runs to completion — it never short-circuits based
// on the caller's context being canceled — since its cost is pure CPU and
// letting cancellation skip the comparison would leak timing information.
func (v *SigV4Verifier) VerifyRequest(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return apierr.ErrMissingAuthenticationToken
	}

	parsed, err := parseAuthorizationHeader(authHeader)
	if err != nil {
		return apierr.ErrIncompleteSignature.WithMessage("%v", err)
	}

	if !secretscrypto.ConstantTimeEqual(parsed.AccessKeyID, v.Principal.AccessKeyID) {
		return apierr.ErrInvalidClientTokenId
	}

	amzDate := r.Header.Get("X-Amz-Date")
	if amzDate == "" {
		return apierr.ErrIncompleteSignature.WithMessage("missing X-Amz-Date header")
	}
	requestTime, err := time.Parse(amzDateFormat, amzDate)
	if err != nil {
		return apierr.ErrIncompleteSignature.WithMessage("invalid X-Amz-Date format")
	}

	if len(amzDate) < 8 || parsed.DateStr != amzDate[:8] {
		return apierr.ErrSignatureDoesNotMatch.WithMessage("credential date does not match X-Amz-Date")
	}

	now := time.Now().UTC()
	diff := now.Sub(requestTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > v.clockSkew() {
		return apierr.ErrExpiredToken
	}

	if err := checkHostSigned(r, parsed.SignedHeaders); err != nil {
		return apierr.ErrIncompleteSignature.WithMessage("%v", err)
	}

	clientDeclaredHash := r.Header.Get("X-Amz-Content-Sha256") != ""
	if err := ensureContentSHA256(r); err != nil {
		return apierr.ErrInternalFailure.WithMessage("%v", err)
	}
	if declared := r.Header.Get("X-Amz-Content-Sha256"); clientDeclaredHash && declared != unsignedPayload {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return apierr.ErrInternalFailure.WithMessage("reading request body: %v", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		if secretscrypto.SHA256Hex(bodyBytes) != declared {
			return apierr.ErrSignatureDoesNotMatch.WithMessage("x-amz-content-sha256 does not match the request body")
		}
	}

	canonicalRequest := buildCanonicalRequest(r, parsed.SignedHeaders)
	scope := fmt.Sprintf("%s/%s/%s/%s", parsed.DateStr, parsed.Region, service, scopeTerminator)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signingKey := deriveSigningKey(v.Principal.SecretAccessKey, parsed.DateStr, parsed.Region)
	expectedSignature := hex.EncodeToString(secretscrypto.HMACSHA256(signingKey, stringToSign))

	if !secretscrypto.ConstantTimeEqual(expectedSignature, parsed.Signature) {
		return apierr.ErrSignatureDoesNotMatch
	}
	return nil
}

// checkHostSigned requires that, when the request carries a Host header,
// "host" is among the signed headers.
func checkHostSigned(r *http.Request, signedHeaders []string) error {
	if r.Host == "" {
		return nil
	}
	for _, h := range signedHeaders {
		if strings.EqualFold(h, "host") {
			return nil
		}
	}
	return fmt.Errorf("host header present but not signed")
}

// ensureContentSHA256 fills in X-Amz-Content-Sha256 from the actual body
// when the client omitted it, so buildCanonicalRequest always has a value
// to include in the hashed-payload slot.
func ensureContentSHA256(r *http.Request) error {
	if r.Header.Get("X-Amz-Content-Sha256") != "" {
		return nil
	}
	if r.Body == nil {
		r.Header.Set("X-Amz-Content-Sha256", emptySHA256)
		return nil
	}
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	r.Header.Set("X-Amz-Content-Sha256", secretscrypto.SHA256Hex(bodyBytes))
	return nil
}

// buildCanonicalRequest builds the canonical request string.
func buildCanonicalRequest(r *http.Request, signedHeaders []string) string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte('\n')
	sb.WriteString(canonicalURI(r.URL.Path))
	sb.WriteByte('\n')
	sb.WriteString(canonicalQueryString(r.URL.Query()))
	sb.WriteByte('\n')
	sb.WriteString(canonicalHeaders(r, signedHeaders))
	sb.WriteByte('\n')
	sb.WriteString(strings.Join(signedHeaders, ";"))
	sb.WriteByte('\n')

	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	if payloadHash == "" {
		payloadHash = unsignedPayload
	}
	sb.WriteString(payloadHash)
	return sb.String()
}

// buildStringToSign builds the string to sign for SigV4.
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	return algorithm + "\n" +
		amzDate + "\n" +
		scope + "\n" +
		secretscrypto.SHA256Hex([]byte(canonicalRequest))
}

// deriveSigningKey derives the SigV4 signing key using the HMAC chain,
// fixed to this server's one service name.
func deriveSigningKey(secretKey, dateStr, region string) []byte {
	dateKey := secretscrypto.HMACSHA256([]byte("AWS4"+secretKey), dateStr)
	regionKey := secretscrypto.HMACSHA256(dateKey, region)
	serviceKey := secretscrypto.HMACSHA256(regionKey, service)
	return secretscrypto.HMACSHA256(serviceKey, scopeTerminator)
}

// canonicalURI returns the URI-encoded absolute path. Forward slashes are
// not encoded. Empty path becomes "/".
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = URIEncode(seg, false)
	}
	return strings.Join(segments, "/")
}

// canonicalQueryString returns the sorted, URI-encoded query string.
func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	var pairs []string
	for key, vals := range values {
		encodedKey := URIEncode(key, true)
		if len(vals) == 0 {
			pairs = append(pairs, encodedKey+"=")
		}
		for _, val := range vals {
			pairs = append(pairs, encodedKey+"="+URIEncode(val, true))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// canonicalHeaders builds the canonical headers string from the signed
// header list, collapsing internal whitespace runs to a single space.
func canonicalHeaders(r *http.Request, signedHeaders []string) string {
	var sb strings.Builder
	for _, name := range signedHeaders {
		name = strings.ToLower(name)
		var values []string
		if name == "host" {
			host := r.Host
			if host == "" {
				host = r.Header.Get("Host")
			}
			values = []string{host}
		} else {
			values = r.Header.Values(http.CanonicalHeaderKey(name))
		}
		joined := strings.TrimSpace(strings.Join(values, ","))
		for strings.Contains(joined, "  ") {
			joined = strings.ReplaceAll(joined, "  ", " ")
		}
		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(joined)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// URIEncode encodes a string per SigV4's URI encoding rules: A-Z, a-z,
// 0-9, '-', '_', '.', '~' pass through unencoded; if encodeSlash is false,
// '/' also passes through; everything else is percent-encoded with
// uppercase hex.
func URIEncode(s string, encodeSlash bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) || (!encodeSlash && c == '/') {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('%')
			sb.WriteByte(hexDigit(c >> 4))
			sb.WriteByte(hexDigit(c & 0x0f))
		}
	}
	return sb.String()
}

func isURIUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func hexDigit(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'A' + b - 10
}
