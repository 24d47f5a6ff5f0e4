// Package contact detects contact data in free text and redacts it.
//
// The patterns are heuristic and form a fixed contract: changing them changes
// behavior and requires new fixtures.
package contact

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// phoneCandidateRe is a broad scan; candidates are validated after cleaning.
	phoneCandidateRe = regexp.MustCompile(`\+?\d[\d \t().\-]{6,}\d`)

	validPhoneRe = regexp.MustCompile(`^\+?\d{10,15}$`)

	// digitGroupRe splits a rejected candidate into its separator-delimited groups.
	digitGroupRe = regexp.MustCompile(`\+?\d+`)

	addressRe = regexp.MustCompile(`(?im)^[ \t]*(?:address|direcci[oó]n|domicilio|ubicaci[oó]n)[ \t]*[:\-][ \t]*(\S[^\n]*)$`)

	spaceRunRe   = regexp.MustCompile(` {3,}`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// Detect derives the canonical contact record from text. The first valid
// match of each kind wins.
func Detect(text string) models.ContactInfo {
	var info models.ContactInfo

	if email := emailRe.FindString(text); email != "" {
		info.Email = &email
	}

	for _, candidate := range phoneCandidateRe.FindAllString(text, -1) {
		if spans := phoneSpans(candidate); len(spans) > 0 {
			phone, _ := CleanPhone(candidate[spans[0][0]:spans[0][1]])
			info.Phone = &phone
			break
		}
	}

	if m := addressRe.FindStringSubmatch(text); m != nil {
		address := strings.TrimSpace(m[1])
		if address != "" {
			info.Address = &address
		}
	}

	return info
}

// CleanPhone reduces a candidate to its canonical digit string, keeping a
// leading '+'. It reports whether the result is a valid phone number.
func CleanPhone(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	var b strings.Builder
	if strings.HasPrefix(candidate, "+") {
		b.WriteByte('+')
	}
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	return cleaned, validPhoneRe.MatchString(cleaned)
}

// phoneSpans returns the byte ranges of the valid phone numbers inside a
// candidate. A candidate that is not itself valid, such as two numbers
// separated by a space, is split into digit groups and scanned left to
// right for the shortest run of consecutive groups that forms a phone.
func phoneSpans(candidate string) [][2]int {
	if _, ok := CleanPhone(candidate); ok {
		return [][2]int{{0, len(candidate)}}
	}
	groups := digitGroupRe.FindAllStringIndex(candidate, -1)
	var spans [][2]int
	for i := 0; i < len(groups); {
		next := i + 1
		for j := i; j < len(groups); j++ {
			cleaned, ok := CleanPhone(candidate[groups[i][0]:groups[j][1]])
			if ok {
				spans = append(spans, [2]int{groups[i][0], groups[j][1]})
				next = j + 1
				break
			}
			if len(strings.TrimPrefix(cleaned, "+")) > 15 {
				break
			}
		}
		i = next
	}
	return spans
}

// removeSpans deletes the given ascending, non-overlapping ranges from s.
func removeSpans(s string, spans [][2]int) string {
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp[0]])
		last = sp[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// Merge fills the fields missing in primary from secondary.
func Merge(primary, secondary models.ContactInfo) models.ContactInfo {
	if primary.Email == nil {
		primary.Email = secondary.Email
	}
	if primary.Phone == nil {
		primary.Phone = secondary.Phone
	}
	if primary.Address == nil {
		primary.Address = secondary.Address
	}
	return primary
}

// Redact removes every email-like and phone-like substring from text, plus
// the detected address, then normalizes whitespace. It repeats until the
// text stops changing, so Redact(Redact(t, c), c) == Redact(t, c).
func Redact(text string, info models.ContactInfo) string {
	for {
		next := redactOnce(text, info)
		if next == text {
			return text
		}
		text = next
	}
}

func redactOnce(text string, info models.ContactInfo) string {
	text = emailRe.ReplaceAllString(text, "")
	text = phoneCandidateRe.ReplaceAllStringFunc(text, func(candidate string) string {
		return removeSpans(candidate, phoneSpans(candidate))
	})
	if info.Address != nil && *info.Address != "" {
		text = strings.ReplaceAll(text, *info.Address, "")
	}
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = newlineRunRe.ReplaceAllString(text, "\n\n")
	return text
}

// ContainsContact reports whether text still holds an email-like or valid
// phone-like substring.
func ContainsContact(text string) bool {
	if emailRe.MatchString(text) {
		return true
	}
	for _, candidate := range phoneCandidateRe.FindAllString(text, -1) {
		if len(phoneSpans(candidate)) > 0 {
			return true
		}
	}
	return false
}

// ParseBlock re-parses a labelled contact block for its phone and email.
// Unlabelled blocks, such as ones returned by the structuring collaborator,
// fall back to pattern detection.
func ParseBlock(block string) (phone, email string) {
	for _, line := range strings.Split(block, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "phone", "tel", "telefono", "teléfono":
			if phone == "" {
				phone = value
			}
		case "email", "e-mail", "correo":
			if email == "" {
				email = value
			}
		}
	}
	if phone == "" || email == "" {
		detected := Detect(block)
		if phone == "" && detected.Phone != nil {
			phone = *detected.Phone
		}
		if email == "" && detected.Email != nil {
			email = *detected.Email
		}
	}
	return phone, email
}
