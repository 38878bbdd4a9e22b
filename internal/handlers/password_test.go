package handlers

import (
	"strings"
	"testing"
)

func TestGenerateRandomPasswordDefaultLength(t *testing.T) {
	pw, apiErr := generateRandomPassword(passwordOptions{PasswordLength: 32, RequireEachIncludedType: true})
	if apiErr != nil {
		t.Fatalf("generateRandomPassword: %v", apiErr)
	}
	if len(pw) != 32 {
		t.Fatalf("len(pw) = %d, want 32", len(pw))
	}
}

func TestGenerateRandomPasswordExcludesCharacters(t *testing.T) {
	pw, apiErr := generateRandomPassword(passwordOptions{
		PasswordLength:    200,
		ExcludeCharacters: "aeiouAEIOU",
	})
	if apiErr != nil {
		t.Fatalf("generateRandomPassword: %v", apiErr)
	}
	if strings.ContainsAny(pw, "aeiouAEIOU") {
		t.Fatalf("password contains an excluded character: %q", pw)
	}
}

func TestGenerateRandomPasswordRequireEachIncludedType(t *testing.T) {
	// Mirrors scenario S6: 8 chars, only uppercase and digits allowed.
	pw, apiErr := generateRandomPassword(passwordOptions{
		PasswordLength:          8,
		ExcludeLowercase:        true,
		ExcludePunctuation:      true,
		RequireEachIncludedType: true,
	})
	if apiErr != nil {
		t.Fatalf("generateRandomPassword: %v", apiErr)
	}
	if len(pw) != 8 {
		t.Fatalf("len(pw) = %d, want 8", len(pw))
	}
	if !strings.ContainsAny(pw, upperClass) {
		t.Errorf("password %q missing a required uppercase character", pw)
	}
	if !strings.ContainsAny(pw, digitClass) {
		t.Errorf("password %q missing a required digit", pw)
	}
	for _, c := range pw {
		if strings.ContainsRune(lowerClass, c) || strings.ContainsRune(punctClass, c) || c == ' ' {
			t.Fatalf("password %q contains an excluded character class", pw)
		}
	}
}

func TestGenerateRandomPasswordEmptyAlphabetFails(t *testing.T) {
	_, apiErr := generateRandomPassword(passwordOptions{
		PasswordLength:     8,
		ExcludeLowercase:   true,
		ExcludeUppercase:   true,
		ExcludeNumbers:     true,
		ExcludePunctuation: true,
	})
	if apiErr == nil || apiErr.Type != "InvalidParameterException" {
		t.Fatalf("apiErr = %v, want InvalidParameterException", apiErr)
	}
}

func TestGenerateRandomPasswordNoModuloBiasForOddAlphabetSize(t *testing.T) {
	// 3-character alphabet exercises the rejection-sampling path where
	// 256 is not evenly divisible by the alphabet size.
	counts := map[byte]int{}
	for i := 0; i < 3000; i++ {
		pw, apiErr := generateRandomPassword(passwordOptions{
			PasswordLength:    1,
			ExcludeCharacters: "defghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
			ExcludePunctuation: true,
		})
		if apiErr != nil {
			t.Fatalf("generateRandomPassword: %v", apiErr)
		}
		counts[pw[0]]++
	}
	if len(counts) != 3 {
		t.Fatalf("saw %d distinct characters from a 3-character alphabet, want 3: %v", len(counts), counts)
	}
}
