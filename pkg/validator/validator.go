package validator

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+[0-9]{10,15}$`)
)

func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePhone проверяет уже нормализованный номер (см. FormatPhone).
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

func ValidatePassword(password string) bool {
	if len(password) < 6 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
			return false
		}
	}

	return hasLetter && hasDigit
}

func ValidateNamePart(name string) bool {
	if len([]rune(name)) < 2 {
		return false
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && r != '-' && r != ' ' && r != '\'' {
			return false
		}
	}

	return true
}

func digitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// FormatPhone приводит номер к виду +<цифры>. Российские номера, начинающиеся
// с 8, переводятся в +7.
func FormatPhone(phone string) string {
	trimmed := strings.TrimSpace(phone)
	digits := digitsOnly(trimmed)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}

	if len(digits) == 11 && strings.HasPrefix(digits, "8") {
		return "+7" + digits[1:]
	}
	if len(digits) == 10 {
		return "+7" + digits
	}

	return "+" + digits
}

// FormatName делает заглавной первую букву каждого слова и части через дефис.
func FormatName(name string) string {
	parts := strings.Fields(name)
	for i, part := range parts {
		subparts := strings.Split(part, "-")
		for j, sub := range subparts {
			subparts[j] = capitalize(sub)
		}
		parts[i] = strings.Join(subparts, "-")
	}

	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func SanitizeString(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == '`' {
			return -1
		}
		return r
	}, s))
}
