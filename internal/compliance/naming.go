package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxFileNameLength is the longest file name accepted by default
const DefaultMaxFileNameLength = 64

var (
	consecutiveSpecial = regexp.MustCompile(`[-_.]{2,}`)
	disallowedChar     = regexp.MustCompile(`[^A-Za-z0-9._\- ]`)
)

// NamingOptions configures CheckFileNaming
type NamingOptions struct {
	// MaxLength is the maximum name length in characters. Zero means DefaultMaxFileNameLength.
	MaxLength        int  `mapstructure:"max_length"`
	RequireLowercase bool `mapstructure:"require_lowercase"`
}

// DefaultNamingOptions returns 64 characters, lowercase only
func DefaultNamingOptions() NamingOptions {
	return NamingOptions{MaxLength: DefaultMaxFileNameLength, RequireLowercase: true}
}

// CheckFileNaming validates the base name of path against the submission naming convention
func CheckFileNaming(path string, opts NamingOptions) CheckResult {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxFileNameLength
	}

	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}

	var violations []string
	if name == "" || name == "." {
		violations = append(violations, "File name is empty")
	} else {
		first, _ := utf8.DecodeRuneInString(name)
		if !isASCIIAlnum(first) {
			violations = append(violations, "File name must start with an alphanumeric character")
		}
	}
	if strings.Contains(name, " ") {
		violations = append(violations, "File name contains spaces")
	}
	if n := utf8.RuneCountInString(name); n > maxLength {
		violations = append(violations,
			fmt.Sprintf("File name exceeds maximum length of %d characters (%d)", maxLength, n))
	}
	if opts.RequireLowercase && strings.IndexFunc(name, unicode.IsUpper) >= 0 {
		violations = append(violations, "File name contains uppercase letters")
	}
	if consecutiveSpecial.MatchString(name) {
		violations = append(violations, "File name contains consecutive special characters")
	}
	if bad := disallowedChar.FindAllString(name, -1); len(bad) > 0 {
		violations = append(violations,
			fmt.Sprintf("File name contains invalid characters: %s", strings.Join(unique(bad), " ")))
	}

	if len(violations) == 0 {
		return CheckResult{Passed: true, Message: "File name follows naming conventions"}
	}
	return CheckResult{
		Passed:  false,
		Message: strings.Join(violations, "; "),
		Details: Details{Violations: violations},
	}
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
