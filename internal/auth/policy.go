package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Password length bounds, counted in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
)

// Username length bounds.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// SpecialCharacters is the set that satisfies the special-character rule.
const SpecialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Rule names a single password policy check.
type Rule string

const (
	RuleNonEmpty  Rule = "non_empty"
	RuleLength    Rule = "length"
	RuleUppercase Rule = "uppercase"
	RuleLowercase Rule = "lowercase"
	RuleDigit     Rule = "digit"
	RuleSpecial   Rule = "special"
)

// Violation describes the first rule a candidate failed.
type Violation struct {
	Rule    Rule
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_+&*-]+(?:\.[a-zA-Z0-9_+&*-]+)*@(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,7}$`)
)

// PasswordPolicy checks password strength. It holds no state and is safe
// for concurrent use.
type PasswordPolicy struct{}

// NewPasswordPolicy creates the default password policy.
func NewPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{}
}

type policyRule struct {
	rule    Rule
	message string
	ok      func(string) bool
}

var passwordRules = []policyRule{
	{RuleNonEmpty, "password cannot be empty", func(p string) bool {
		return strings.TrimSpace(p) != ""
	}},
	{RuleLength, "password must be between 8 and 100 characters", func(p string) bool {
		n := utf8.RuneCountInString(p)
		return n >= MinPasswordLength && n <= MaxPasswordLength
	}},
	{RuleUppercase, "password must contain at least one uppercase letter", containsFunc(unicode.IsUpper)},
	{RuleLowercase, "password must contain at least one lowercase letter", containsFunc(unicode.IsLower)},
	{RuleDigit, "password must contain at least one number", containsFunc(unicode.IsDigit)},
	{RuleSpecial, "password must contain at least one special character", func(p string) bool {
		return strings.ContainsAny(p, SpecialCharacters)
	}},
}

func containsFunc(f func(rune) bool) func(string) bool {
	return func(s string) bool {
		return strings.IndexFunc(s, f) >= 0
	}
}

// Check returns nil when the password satisfies every rule. Otherwise it
// returns a PolicyViolation error wrapping the first failed rule's Violation.
func (PasswordPolicy) Check(password string) error {
	for _, r := range passwordRules {
		if !r.ok(password) {
			v := &Violation{Rule: r.rule, Message: r.message}
			return WrapError(KindPolicyViolation, v.Message, v)
		}
	}
	return nil
}

// ValidateUsername checks presence, allowed characters and length, in that order.
func ValidateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return NewError(KindPolicyViolation, "username cannot be empty")
	case !usernamePattern.MatchString(username):
		return NewError(KindPolicyViolation, "username can only contain letters, numbers and underscores")
	case len(username) < MinUsernameLength || len(username) > MaxUsernameLength:
		return NewError(KindPolicyViolation, "username must be between 3 and 30 characters")
	}
	return nil
}

// ValidateEmail checks presence and address shape.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return NewError(KindPolicyViolation, "email cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return NewError(KindPolicyViolation, "invalid email format")
	}
	return nil
}

// ViolatedRule returns the rule behind a policy error, or "" when err is
// not a password policy violation.
func ViolatedRule(err error) Rule {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if v, ok := e.Err.(*Violation); ok {
		return v.Rule
	}
	return ""
}
