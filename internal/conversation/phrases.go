package conversation

import (
	"regexp"
	"strings"
)

// Phrase matchers for the short-circuit paths. Kept as compiled patterns at
// package level, matched against the trimmed lowercase message.

var goodbyePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(good)?bye\b`),
	regexp.MustCompile(`(?i)\bgotta (go|run)\b`),
	regexp.MustCompile(`(?i)\bhave to (go|run)\b`),
	regexp.MustCompile(`(?i)\btalk (to you )?later\b`),
	regexp.MustCompile(`(?i)\bsee (you|ya)\b`),
	regexp.MustCompile(`(?i)\btake care\b`),
	regexp.MustCompile(`(?i)^\s*(ok(ay)?[,.! ]*)?(thanks|thank you)[,.! ]*(bye|goodbye)[.! ]*$`),
}

var humanConnectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(talk|speak) (to|with) (someone|a (real )?person|a human)\b`),
	regexp.MustCompile(`(?i)\b(real|actual) person\b`),
	regexp.MustCompile(`(?i)\bconnect me\b`),
	regexp.MustCompile(`(?i)\b(call|phone) me\b`),
	regexp.MustCompile(`(?i)\bsomeone (from|on) (the |your )?team\b`),
	regexp.MustCompile(`(?i)\bget in touch with (someone|the team)\b`),
	regexp.MustCompile(`(?i)\bhuman\b`),
}

var orderIntentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bplace (an |my )?order\b`),
	regexp.MustCompile(`(?i)\b(want|like|ready) to (order|buy)\b`),
	regexp.MustCompile(`(?i)\border some (coffee|beans)\b`),
	regexp.MustCompile(`(?i)\bhow do i (order|buy)\b`),
	regexp.MustCompile(`(?i)\bpurchase\b`),
}

var casualBrowserPhrases = []string{
	"just looking",
	"just browsing",
	"just curious",
	"just checking",
	"window shopping",
	"no plans yet",
	"not right now",
	"just exploring",
	"looking around",
}

// closurePhrases end an already-qualified conversation.
var closurePhrases = []string{
	"no more questions",
	"nothing else",
	"that's all",
	"thats all",
	"that's it",
	"thats it",
	"i'm good",
	"im good",
	"all set",
	"we're done",
	"were done",
	"no thanks",
	"no thank you",
}

// shortAcknowledgments also close a qualified conversation when they are
// the entire message.
var shortAcknowledgments = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "kk": {}, "cool": {}, "great": {},
	"thanks": {}, "thank you": {}, "ty": {}, "perfect": {}, "sounds good": {},
	"awesome": {}, "got it": {}, "no": {}, "nope": {}, "nah": {},
}

var affirmativeWords = map[string]struct{}{
	"yes": {}, "yeah": {}, "yep": {}, "yup": {}, "sure": {}, "correct": {},
	"right": {}, "ok": {}, "okay": {}, "confirm": {}, "confirmed": {},
	"that's right": {}, "thats right": {}, "sounds good": {}, "please do": {},
}

var negativeWords = map[string]struct{}{
	"no": {}, "nope": {}, "nah": {}, "wrong": {}, "incorrect": {},
	"that's wrong": {}, "thats wrong": {}, "not right": {}, "not quite": {},
}

var refusalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(don'?t|do not|won'?t|not going to|rather not|prefer not to) (want to )?(give|share|provide)\b`),
	regexp.MustCompile(`(?i)\bno (phone|number|email)\b`),
	regexp.MustCompile(`(?i)\bkeep (it|that) private\b`),
	regexp.MustCompile(`(?i)\bnot comfortable\b`),
}

func matchAny(patterns []*regexp.Regexp, message string) bool {
	for _, p := range patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// IsGoodbye reports whether the prospect is signing off.
func IsGoodbye(message string) bool {
	return matchAny(goodbyePatterns, strings.TrimSpace(message))
}

// IsHumanConnectionRequest reports whether the prospect asked for a person.
func IsHumanConnectionRequest(message string) bool {
	return matchAny(humanConnectionPatterns, strings.TrimSpace(message))
}

// IsOrderIntent reports whether the prospect wants to buy now.
func IsOrderIntent(message string) bool {
	return matchAny(orderIntentPatterns, strings.TrimSpace(message))
}

// IsCasualBrowsing reports whether the prospect flagged themselves as only
// looking around. Keeps the conversation in exploration mode.
func IsCasualBrowsing(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range casualBrowserPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsClosure reports whether a qualified conversation should wrap up: an
// explicit nothing-else phrase, or a short bare acknowledgment.
func IsClosure(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.TrimRight(lower, ".!")
	for _, phrase := range closurePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	_, ok := shortAcknowledgments[lower]
	return ok
}

// IsAffirmative reports a yes-like confirmation.
func IsAffirmative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.TrimRight(lower, ".!")
	if _, ok := affirmativeWords[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "yes")
}

// IsNegative reports a no-like reply.
func IsNegative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = strings.TrimRight(lower, ".!")
	if _, ok := negativeWords[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "no ") || lower == "no"
}

// IsContactRefusal reports an explicit refusal to hand over contact info.
func IsContactRefusal(message string) bool {
	return matchAny(refusalPatterns, strings.TrimSpace(message))
}
