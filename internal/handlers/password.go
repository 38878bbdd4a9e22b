package handlers

import (
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/bleepforge/secretsmanager/internal/apierr"
)

const (
	lowerClass = "abcdefghijklmnopqrstuvwxyz"
	upperClass = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitClass = "0123456789"
	punctClass = `!"#$%&'()*+,-./:;<=>?@[\]^_` + "`" + `{|}~`
	spaceClass = " "

	maxRequireEachTypeAttempts = 1000
)

// passwordOptions mirrors GetRandomPassword's input shape.
type passwordOptions struct {
	PasswordLength          int
	ExcludeCharacters       string
	ExcludeLowercase        bool
	ExcludeUppercase        bool
	ExcludeNumbers          bool
	ExcludePunctuation      bool
	IncludeSpace            bool
	RequireEachIncludedType bool
}

// includedClasses returns the character classes that contribute to the
// alphabet, in the order GetRandomPassword's RequireEachIncludedType check
// considers them.
func (o passwordOptions) includedClasses() []string {
	var classes []string
	if !o.ExcludeLowercase {
		classes = append(classes, lowerClass)
	}
	if !o.ExcludeUppercase {
		classes = append(classes, upperClass)
	}
	if !o.ExcludeNumbers {
		classes = append(classes, digitClass)
	}
	if !o.ExcludePunctuation {
		classes = append(classes, punctClass)
	}
	if o.IncludeSpace {
		classes = append(classes, spaceClass)
	}
	return classes
}

// alphabet builds the allowed character set: the union of included classes,
// minus every character in ExcludeCharacters.
func (o passwordOptions) alphabet() string {
	seen := make(map[byte]bool)
	var sb strings.Builder
	exclude := o.ExcludeCharacters
	for _, class := range o.includedClasses() {
		for i := 0; i < len(class); i++ {
			c := class[i]
			if strings.IndexByte(exclude, c) >= 0 {
				continue
			}
			if !seen[c] {
				seen[c] = true
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// randomIndex draws a uniform index in [0, n) via rejection sampling over a
// cryptographically strong byte stream, so the result carries no modulo
// bias regardless of n.
func randomIndex(n int) (int, error) {
	if n <= 0 || n > 256 {
		return 0, apierr.ErrInternalFailure.WithMessage("invalid alphabet size %d", n)
	}
	limit := byte(256 - (256 % n))
	buf := make([]byte, 1)
	for {
		if _, err := rand.Read(buf); err != nil {
			return 0, err
		}
		if buf[0] < limit {
			return int(buf[0]) % n, nil
		}
	}
}

// generateRandomPassword draws PasswordLength characters from the allowed
// alphabet via rejection sampling. When RequireEachIncludedType is set it
// regenerates the whole password until every included class is represented,
// capped at maxRequireEachTypeAttempts attempts.
func generateRandomPassword(o passwordOptions) (string, *apierr.APIError) {
	alphabet := o.alphabet()
	if alphabet == "" {
		return "", apierr.ErrInvalidParameter.WithMessage("the requested character classes exclude every character")
	}

	classes := o.includedClasses()
	attempts := 1
	if o.RequireEachIncludedType {
		attempts = maxRequireEachTypeAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		buf := make([]byte, o.PasswordLength)
		for i := range buf {
			idx, err := randomIndex(len(alphabet))
			if err != nil {
				return "", apierr.ErrInternalFailure.WithMessage("%v", err)
			}
			buf[i] = alphabet[idx]
		}
		password := string(buf)
		if !o.RequireEachIncludedType || containsEachClass(password, classes) {
			return password, nil
		}
	}
	return "", apierr.ErrInvalidParameter.WithMessage("could not satisfy RequireEachIncludedType within %d attempts", maxRequireEachTypeAttempts)
}

func containsEachClass(password string, classes []string) bool {
	for _, class := range classes {
		if !strings.ContainsAny(password, class) {
			return false
		}
	}
	return true
}

// --- GetRandomPassword ---

type getRandomPasswordRequest struct {
	PasswordLength          int64  `json:"PasswordLength"`
	ExcludeCharacters       string `json:"ExcludeCharacters"`
	ExcludeLowercase        bool   `json:"ExcludeLowercase"`
	ExcludeUppercase        bool   `json:"ExcludeUppercase"`
	ExcludeNumbers          bool   `json:"ExcludeNumbers"`
	ExcludePunctuation      bool   `json:"ExcludePunctuation"`
	IncludeSpace            bool   `json:"IncludeSpace"`
	RequireEachIncludedType *bool  `json:"RequireEachIncludedType"`
}

type getRandomPasswordResponse struct {
	RandomPassword string `json:"RandomPassword"`
}

func (h *Handler) GetRandomPassword(w http.ResponseWriter, r *http.Request) {
	const action = "GetRandomPassword"
	req := getRandomPasswordRequest{PasswordLength: 32}
	if apiErr := decodeBody(r, &req); apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	if req.PasswordLength == 0 {
		req.PasswordLength = 32
	}
	if req.PasswordLength < 4 || req.PasswordLength > 4096 {
		writeError(w, action, apierr.ErrInvalidParameter.WithMessage("PasswordLength must be between 4 and 4096"))
		return
	}

	requireEach := true
	if req.RequireEachIncludedType != nil {
		requireEach = *req.RequireEachIncludedType
	}

	password, apiErr := generateRandomPassword(passwordOptions{
		PasswordLength:          int(req.PasswordLength),
		ExcludeCharacters:       req.ExcludeCharacters,
		ExcludeLowercase:        req.ExcludeLowercase,
		ExcludeUppercase:        req.ExcludeUppercase,
		ExcludeNumbers:          req.ExcludeNumbers,
		ExcludePunctuation:      req.ExcludePunctuation,
		IncludeSpace:            req.IncludeSpace,
		RequireEachIncludedType: requireEach,
	})
	if apiErr != nil {
		writeError(w, action, apiErr)
		return
	}
	writeJSON(w, action, getRandomPasswordResponse{RandomPassword: password})
}
