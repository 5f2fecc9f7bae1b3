package conversation

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidName means the cleaned value cannot plausibly be a name.
var ErrInvalidName = errors.New("conversation: not a usable name")

// namePrefixes are self-reference lead-ins stripped before storing a name.
var namePrefixes = []string{
	"my name is",
	"my name's",
	"the name is",
	"name is",
	"name's",
	"i am",
	"i'm",
	"im",
	"it's",
	"its",
	"this is",
	"call me",
	"you can call me",
}

var pronouns = map[string]struct{}{
	"i": {}, "me": {}, "you": {}, "he": {}, "she": {}, "it": {},
	"we": {}, "they": {}, "us": {}, "them": {},
}

var nameTrimRe = regexp.MustCompile(`[.,!?:;]+$`)

// CleanName strips lead-in phrases and punctuation from a raw name answer.
// Bare pronouns and values shorter than two characters are rejected.
func CleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	lower := strings.ToLower(name)
	for _, prefix := range namePrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	name = nameTrimRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if len([]rune(name)) < 2 {
		return "", ErrInvalidName
	}
	if _, ok := pronouns[strings.ToLower(name)]; ok {
		return "", ErrInvalidName
	}
	return name, nil
}

// vaguePhrases are whole responses that carry no usable information.
var vaguePhrases = map[string]struct{}{
	"not sure":          {},
	"i'm not sure":      {},
	"im not sure":       {},
	"don't know":        {},
	"dont know":         {},
	"i don't know":      {},
	"i dont know":       {},
	"no idea":           {},
	"idk":               {},
	"dunno":             {},
	"whatever":          {},
	"anything":          {},
	"anything is fine":  {},
	"whatever you have": {},
	"something good":    {},
	"you decide":        {},
	"surprise me":       {},
}

var hedgeWords = map[string]struct{}{
	"maybe": {}, "probably": {}, "possibly": {}, "perhaps": {},
	"kinda": {}, "sorta": {}, "idk": {}, "dunno": {}, "whatever": {},
	"think": {}, "guess": {},
}

// IsVagueResponse reports whether an answer is too noncommittal to store.
// Vague values trigger a clarification question instead of a write.
func IsVagueResponse(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = nameTrimRe.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return true
	}
	if _, ok := vaguePhrases[cleaned]; ok {
		return true
	}
	words := strings.Fields(cleaned)
	if len(words) < 3 {
		for _, w := range words {
			if _, ok := hedgeWords[w]; ok {
				return true
			}
		}
	}
	return false
}
