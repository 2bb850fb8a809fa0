package jina

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

var textTypes = []string{
	"text/", "application/json", "application/xml", "application/problem+json",
}

// safeBodyPreview returns a short form of an error body for logs. Non-text
// bodies are reduced to their size and hash.
func safeBodyPreview(body []byte, contentType string, maxChars int) string {
	if len(body) == 0 {
		return ""
	}
	lower := strings.ToLower(contentType)
	isText := contentType == ""
	for _, t := range textTypes {
		if strings.Contains(lower, t) {
			isText = true
			break
		}
	}
	if !isText || !utf8.Valid(body) {
		hash := sha256.Sum256(body)
		return fmt.Sprintf("<%d bytes, sha256=%s>", len(body), hex.EncodeToString(hash[:8]))
	}
	s := string(body)
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars]) + fmt.Sprintf("[truncated, total: %d chars]", len(runes))
}
