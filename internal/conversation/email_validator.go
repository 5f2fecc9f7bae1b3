package conversation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	// ErrEmailSyntax means the address is not even shaped like an email.
	ErrEmailSyntax = errors.New("conversation: email failed syntax check")
	// ErrEmailUndeliverable means the domain has no mail exchanger.
	ErrEmailUndeliverable = errors.New("conversation: email domain not deliverable")
	// ErrEmailTypo means the domain looks like a one-character slip of a
	// known provider; the suggestion must be confirmed before acceptance.
	ErrEmailTypo = errors.New("conversation: email domain looks like a typo")
)

var emailSyntaxRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

var emailCandidateRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// trustedEmailDomains are accepted without a deliverability lookup.
var trustedEmailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
}

// knownProviderDomains is the typo-correction target set.
var knownProviderDomains = []string{
	"gmail.com",
	"outlook.com",
	"hotmail.com",
	"yahoo.com",
	"icloud.com",
	"aol.com",
}

// DeliverabilityChecker verifies that a domain can receive mail. It is an
// interface so tests can assert the trusted-domain fast path never reaches
// the network.
type DeliverabilityChecker interface {
	CheckDomain(ctx context.Context, domain string) error
}

// MXChecker resolves mail exchangers through DNS.
type MXChecker struct {
	resolver *net.Resolver
}

func NewMXChecker() *MXChecker {
	return &MXChecker{resolver: net.DefaultResolver}
}

func (c *MXChecker) CheckDomain(ctx context.Context, domain string) error {
	records, err := c.resolver.LookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrEmailUndeliverable, domain)
	}
	return nil
}

// EmailValidator validates addresses with a provider allow-list fast path,
// typo detection against known providers, and a deliverability check for
// everything else.
type EmailValidator struct {
	checker DeliverabilityChecker
}

func NewEmailValidator(checker DeliverabilityChecker) *EmailValidator {
	if checker == nil {
		checker = NewMXChecker()
	}
	return &EmailValidator{checker: checker}
}

// Validate normalizes and checks raw. On ErrEmailTypo the returned
// suggestion holds the corrected address the prospect must confirm.
func (v *EmailValidator) Validate(ctx context.Context, raw string) (normalized, suggestion string, err error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !emailSyntaxRe.MatchString(addr) {
		return "", "", ErrEmailSyntax
	}

	at := strings.LastIndex(addr, "@")
	local, domain := addr[:at], addr[at+1:]

	if _, ok := trustedEmailDomains[domain]; ok || strings.HasSuffix(domain, ".edu") {
		return addr, "", nil
	}

	if corrected := suggestProviderDomain(domain); corrected != "" {
		return "", local + "@" + corrected, ErrEmailTypo
	}

	if err := v.checker.CheckDomain(ctx, domain); err != nil {
		return "", "", err
	}
	return addr, "", nil
}

// ExtractEmailCandidate pulls the first email-shaped token from a message.
func ExtractEmailCandidate(message string) string {
	return strings.ToLower(emailCandidateRe.FindString(message))
}

// suggestProviderDomain returns a known provider domain within one edit of
// the input, or "" when none matches.
func suggestProviderDomain(domain string) string {
	for _, known := range knownProviderDomains {
		if domain == known {
			return ""
		}
		if editDistanceAtMostOne(domain, known) {
			return known
		}
	}
	return ""
}

// editDistanceAtMostOne reports whether a and b differ by a single
// insertion, deletion, substitution, or adjacent transposition.
func editDistanceAtMostOne(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	switch {
	case la == lb:
		diff := 0
		firstDiff := -1
		for i := 0; i < la; i++ {
			if a[i] != b[i] {
				if diff == 0 {
					firstDiff = i
				}
				diff++
			}
		}
		if diff == 1 {
			return true
		}
		// Adjacent transposition ("gmial" for "gmail").
		if diff == 2 && firstDiff+1 < la &&
			a[firstDiff] == b[firstDiff+1] && a[firstDiff+1] == b[firstDiff] {
			return a[firstDiff+2:] == b[firstDiff+2:]
		}
		return false
	case la == lb+1:
		return oneDeletionAway(a, b)
	case lb == la+1:
		return oneDeletionAway(b, a)
	default:
		return false
	}
}

// oneDeletionAway reports whether removing one byte from longer yields
// shorter.
func oneDeletionAway(longer, shorter string) bool {
	for i := 0; i <= len(shorter); i++ {
		if longer[:i] == shorter[:i] && longer[i+1:] == shorter[i:] {
			return true
		}
	}
	return false
}
