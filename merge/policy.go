package merge

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Method selects what an import does with matched units.
type Method string

const (
	// MethodTranslate stores imported strings as reviewed translations.
	MethodTranslate Method = "translate"
	// MethodFuzzy stores imported strings marked as fuzzy.
	MethodFuzzy Method = "fuzzy"
	// MethodSuggest records imported strings as suggestions only.
	MethodSuggest Method = "suggest"
)

var _ pflag.Value = (*Method)(nil)

// Methods lists the valid methods.
var Methods = []Method{MethodTranslate, MethodFuzzy, MethodSuggest}

// ParseMethod converts a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Methods {
		if m == valid {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown import method %q (valid: translate, fuzzy, suggest)", s)
}

// String implements fmt.Stringer and pflag.Value.
func (m Method) String() string {
	return string(m)
}

// Set implements pflag.Value.
func (m *Method) Set(s string) error {
	parsed, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Method) Type() string {
	return "method"
}

// Policy configures one import batch.
type Policy struct {
	// Overwrite replaces targets that are already translated.
	Overwrite bool
	// Method decides how matched units are updated.
	Method Method
	// Author is recorded on suggestions; it never affects decisions.
	Author string
}

// DefaultPolicy translates without overwriting.
func DefaultPolicy() Policy {
	return Policy{Method: MethodTranslate}
}
