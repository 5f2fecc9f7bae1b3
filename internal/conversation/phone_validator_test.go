package conversation

import (
	"strings"
	"testing"
)

func TestValidatePhoneDefaultsToUS(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare ten digits", "2125550123", "+12125550123"},
		{"dashed", "212-555-0123", "+12125550123"},
		{"parens and spaces", "(212) 555 0123", "+12125550123"},
		{"dotted", "212.555.0123", "+12125550123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePhone(tt.raw, "", "")
			if err != nil {
				t.Fatalf("ValidatePhone(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ValidatePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidatePhoneCountryDetection(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		message    string
		hint       string
		wantPrefix string
	}{
		{"explicit plus prefix", "+61 2 9374 4000", "", "", "+61"},
		{"country word in message", "02 9374 4000", "I'm in Australia by the way", "", "+61"},
		{"uk mention", "020 7946 0958", "calling from the UK", "", "+44"},
		{"caller hint", "02 9374 4000", "", "AU", "+61"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePhone(tt.raw, tt.hint, tt.message)
			if err != nil {
				t.Fatalf("ValidatePhone error = %v", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("ValidatePhone = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

func TestValidatePhoneStructuredErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want PhoneErrorReason
	}{
		{"too short", "12345", PhoneErrTooShort},
		{"too long", "123456789012345678", PhoneErrTooLong},
		{"no digits", "call me maybe", PhoneErrUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePhone(tt.raw, "", "")
			pe, ok := AsPhoneError(err)
			if !ok {
				t.Fatalf("expected PhoneError, got %v", err)
			}
			if pe.Reason != tt.want {
				t.Fatalf("reason = %s, want %s", pe.Reason, tt.want)
			}
		})
	}
}

func TestExtractPhoneCandidate(t *testing.T) {
	got := ExtractPhoneCandidate("sure, it's 555-867-5309 thanks")
	if got != "555-867-5309" {
		t.Fatalf("candidate = %q", got)
	}
	if got := ExtractPhoneCandidate("no numbers here"); got != "" {
		t.Fatalf("expected empty candidate, got %q", got)
	}
}

func TestDetectCountry(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"I'm in the UK", "GB"},
		{"we're opening in Australia", "AU"},
		{"+44 20 7946 0958", "GB"},
		{"just a normal message", ""},
	}
	for _, tt := range tests {
		if got := DetectCountry(tt.message); got != tt.want {
			t.Errorf("DetectCountry(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
