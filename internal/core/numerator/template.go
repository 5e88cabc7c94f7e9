package numerator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"invoicenum/internal/core/apperror"
)

const (
	// MaxTemplateLength is the longest accepted template, in characters.
	MaxTemplateLength = 64

	// MaxSequenceWidth bounds N in {SEQ:N}.
	MaxSequenceWidth = 10
)

// Template tokens.
const (
	TokenYear4    = "{YYYY}"
	TokenYear2    = "{YY}"
	TokenMonth2   = "{MM}"
	TokenMonth    = "{M}"
	TokenDept     = "{DEPT}"
	TokenDeptName = "{DEPT_NAME}"
)

var (
	seqToken = regexp.MustCompile(`\{SEQ:(\d+)\}`)

	// One or more adjacent department tokens plus the separators around them.
	deptRun = regexp.MustCompile(`[-_/. ]?(?:\{DEPT\}|\{DEPT_NAME\})+[-_/. ]?`)

	anyToken = regexp.MustCompile(`\{[^{}]*\}?|\}`)

	plainTokens = strings.NewReplacer(
		TokenYear4, "", TokenYear2, "", TokenMonth2, "", TokenMonth, "",
		TokenDept, "", TokenDeptName, "",
	)
)

// TemplateContext parametrizes rendering. Month is always the calendar month
// of the issue date, never the counter sentinel.
type TemplateContext struct {
	Sequence   int64
	Year       int
	Month      int
	Department *Department
}

// Render expands a template into a display number.
//
//	Render("{SEQ:3}-{MM}-{YYYY}", {1, 2026, 2}) == "001-02-2026"
//
// Without a department, {DEPT} and {DEPT_NAME} are removed together with the
// separators around them, keeping one separator when both sides had one.
func Render(template string, tc TemplateContext) (string, error) {
	if !seqToken.MatchString(template) {
		return "", apperror.NewValidation("template must contain a {SEQ:N} token").
			WithDetail("template", template)
	}
	if tc.Sequence < 0 {
		return "", apperror.NewInvariantViolation("sequence number must not be negative").
			WithDetail("sequence", tc.Sequence)
	}
	usesMonth := strings.Contains(template, TokenMonth2) || strings.Contains(template, TokenMonth)
	if usesMonth && (tc.Month < 1 || tc.Month > 12) {
		return "", apperror.NewInvariantViolation("display month must be a calendar month").
			WithDetail("month", tc.Month)
	}

	out := template
	if tc.Department == nil {
		out = stripDepartment(out)
	}

	var seqErr error
	out = seqToken.ReplaceAllStringFunc(out, func(tok string) string {
		width, err := sequenceWidth(tok)
		if err != nil {
			seqErr = err
			return tok
		}
		return fmt.Sprintf("%0*d", width, tc.Sequence)
	})
	if seqErr != nil {
		return "", seqErr
	}

	var deptCode, deptName string
	if tc.Department != nil {
		deptCode, deptName = tc.Department.Code, tc.Department.Name
	}
	r := strings.NewReplacer(
		TokenYear4, fmt.Sprintf("%04d", tc.Year),
		TokenYear2, fmt.Sprintf("%02d", tc.Year%100),
		TokenMonth2, fmt.Sprintf("%02d", tc.Month),
		TokenMonth, strconv.Itoa(tc.Month),
		TokenDept, deptCode,
		TokenDeptName, deptName,
	)
	return r.Replace(out), nil
}

// Validate checks template syntax: non-blank, at most MaxTemplateLength
// characters, exactly one {SEQ:N} with 1 <= N <= MaxSequenceWidth, and no
// unrecognized tokens.
func Validate(template string) error {
	if strings.TrimSpace(template) == "" {
		return templateError(template, "template must not be blank")
	}
	if n := utf8.RuneCountInString(template); n > MaxTemplateLength {
		return templateError(template, fmt.Sprintf("template must be at most %d characters", MaxTemplateLength)).
			WithDetail("length", n)
	}

	seqs := seqToken.FindAllString(template, -1)
	switch len(seqs) {
	case 0:
		return templateError(template, "template must contain a {SEQ:N} token")
	case 1:
	default:
		return templateError(template, "template must contain exactly one {SEQ:N} token").
			WithDetail("occurrences", len(seqs))
	}
	if _, err := sequenceWidth(seqs[0]); err != nil {
		return err
	}

	rest := plainTokens.Replace(seqToken.ReplaceAllString(template, ""))
	if strings.ContainsAny(rest, "{}") {
		return templateError(template, "template contains unrecognized tokens").
			WithDetail("tokens", anyToken.FindAllString(rest, -1))
	}
	return nil
}

// Preview validates a template and renders it with sample values
// (sequence 1, February 2026, no department).
func Preview(template string) (string, error) {
	if err := Validate(template); err != nil {
		return "", err
	}
	return Render(template, TemplateContext{Sequence: 1, Year: 2026, Month: 2})
}

func sequenceWidth(tok string) (int, error) {
	m := seqToken.FindStringSubmatch(tok)
	width, err := strconv.Atoi(m[1])
	if err != nil || width < 1 || width > MaxSequenceWidth {
		return 0, apperror.NewValidation(fmt.Sprintf("sequence width must be between 1 and %d", MaxSequenceWidth)).
			WithDetail("field", "template").
			WithDetail("token", tok)
	}
	return width, nil
}

func stripDepartment(s string) string {
	return deptRun.ReplaceAllStringFunc(s, func(m string) string {
		lead := m[0] != '{'
		trail := m[len(m)-1] != '}'
		if lead && trail {
			return m[:1]
		}
		return ""
	})
}

func templateError(template, msg string) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "template").
		WithDetail("template", template)
}
