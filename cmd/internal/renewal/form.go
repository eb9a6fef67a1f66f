package renewal

import (
	"fmt"
	"strings"
)

// RawForm is user input exactly as typed, mask and all.
type RawForm struct {
	CPF       string
	CNHNumber string
	CNHMirror string
}

// Form is a validated, normalized renewal form. Immutable once submitted
// into the workflow.
type Form struct {
	CPF       string // exactly 11 digits
	CNHNumber string // digits only, at most 11
	CNHMirror string
}

// ValidationError reports a malformed form field. It is resolved entirely
// client-side; no network call sees an invalid form.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NormalizeCPF strips everything but digits. Idempotent.
func NormalizeCPF(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCPF renders the canonical masked display (###.###.###-##) for an
// 11-digit input and returns anything else unchanged.
func FormatCPF(s string) string {
	d := NormalizeCPF(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ParseForm validates raw input and produces the normalized form that will
// be transmitted. CPF is normalized to digits-only independent of its
// display mask.
func ParseForm(raw RawForm) (Form, error) {
	cpf := NormalizeCPF(raw.CPF)
	if len(cpf) != 11 {
		return Form{}, &ValidationError{Field: "cpf", Msg: "must contain exactly 11 digits"}
	}

	cnh := strings.TrimSpace(raw.CNHNumber)
	if !allDigits(cnh) || len(cnh) > 11 {
		return Form{}, &ValidationError{Field: "cnh_number", Msg: "must be 1 to 11 digits"}
	}

	mirror := strings.TrimSpace(raw.CNHMirror)
	if mirror == "" {
		return Form{}, &ValidationError{Field: "cnh_mirror", Msg: "must not be empty"}
	}

	return Form{CPF: cpf, CNHNumber: cnh, CNHMirror: mirror}, nil
}

// Data returns the form as the wire-level form_data mapping.
func (f Form) Data() map[string]string {
	return map[string]string{
		"cpf":        f.CPF,
		"cnh_number": f.CNHNumber,
		"cnh_mirror": f.CNHMirror,
	}
}
