package conversation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneErrorReason distinguishes validation failures so the bot can word
// the re-prompt for the actual problem.
type PhoneErrorReason string

const (
	PhoneErrTooShort    PhoneErrorReason = "too_short"
	PhoneErrTooLong     PhoneErrorReason = "too_long"
	PhoneErrUnparseable PhoneErrorReason = "unparseable"
)

// PhoneError is a structured validation failure.
type PhoneError struct {
	Reason PhoneErrorReason
	Digits int
}

func (e *PhoneError) Error() string {
	return fmt.Sprintf("conversation: invalid phone number (%s, %d digits)", e.Reason, e.Digits)
}

// defaultPhoneRegion is assumed when neither the number nor the surrounding
// message carries a country signal. A deliberate leniency: most prospects
// type bare 10-digit US numbers.
const defaultPhoneRegion = "US"

var (
	phoneDigitsRe    = regexp.MustCompile(`\d`)
	phoneCandidateRe = regexp.MustCompile(`\+?[\d][\d\s().-]{6,}\d`)
	dialPrefixRe     = regexp.MustCompile(`\+(\d{1,3})`)
)

// countryMentions maps country words a prospect might type to ISO regions.
var countryMentions = map[string]string{
	"usa": "US", "united states": "US", "america": "US",
	"uk": "GB", "united kingdom": "GB", "england": "GB", "britain": "GB",
	"australia": "AU", "aussie": "AU",
	"canada":      "CA",
	"new zealand": "NZ",
	"ireland":     "IE",
	"india":       "IN",
	"germany":     "DE",
	"france":      "FR",
	"spain":       "ES",
	"italy":       "IT",
	"japan":       "JP",
	"brazil":      "BR",
	"mexico":      "MX",
	"singapore":   "SG",
}

var nonLetterRe = regexp.MustCompile(`[^a-z]+`)

// DetectCountry infers an ISO region from free text: an explicit country
// mention wins, then an international dial prefix. Empty when no signal.
// Mentions are matched on word boundaries so "uk" does not fire inside
// "lukewarm".
func DetectCountry(message string) string {
	lower := " " + nonLetterRe.ReplaceAllString(strings.ToLower(message), " ") + " "
	for mention, region := range countryMentions {
		if strings.Contains(lower, " "+mention+" ") {
			return region
		}
	}
	if m := dialPrefixRe.FindStringSubmatch(message); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			if region := phonenumbers.GetRegionCodeForCountryCode(code); region != "" && region != "ZZ" {
				return region
			}
		}
	}
	return ""
}

// ValidatePhone normalizes raw input to E.164. The region is resolved in
// order: explicit marker inside the number or surrounding message, the
// caller-supplied hint, then US. A bare 10-digit string is accepted as a US
// national number rather than rejected.
func ValidatePhone(raw, regionHint, fullMessage string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", &PhoneError{Reason: PhoneErrUnparseable}
	}

	region := DetectCountry(candidate)
	if region == "" && fullMessage != "" {
		region = DetectCountry(fullMessage)
	}
	if region == "" {
		region = strings.ToUpper(strings.TrimSpace(regionHint))
	}
	if region == "" {
		region = defaultPhoneRegion
	}

	digits := len(phoneDigitsRe.FindAllString(candidate, -1))
	if digits == 10 && region == defaultPhoneRegion && !strings.HasPrefix(candidate, "+") {
		candidate = "+1" + strings.Map(keepDigit, candidate)
	}

	num, err := phonenumbers.Parse(candidate, region)
	if err != nil {
		return "", classifyPhoneError(digits)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", classifyPhoneError(digits)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// FormatPhoneForDisplay renders an E.164 number the way a person would read
// it back, for confirmation prompts.
func FormatPhoneForDisplay(e164 string) string {
	num, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return e164
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}

// ExtractPhoneCandidate pulls the first phone-shaped run out of a longer
// message, so "sure, it's 555-867-5309 thanks" validates cleanly.
func ExtractPhoneCandidate(message string) string {
	return strings.TrimSpace(phoneCandidateRe.FindString(message))
}

func classifyPhoneError(digits int) error {
	switch {
	case digits == 0:
		return &PhoneError{Reason: PhoneErrUnparseable, Digits: digits}
	case digits < 7:
		return &PhoneError{Reason: PhoneErrTooShort, Digits: digits}
	case digits > 15:
		return &PhoneError{Reason: PhoneErrTooLong, Digits: digits}
	default:
		return &PhoneError{Reason: PhoneErrUnparseable, Digits: digits}
	}
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// AsPhoneError unwraps a *PhoneError if err carries one.
func AsPhoneError(err error) (*PhoneError, bool) {
	var pe *PhoneError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
