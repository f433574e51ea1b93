package expression

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/dukex/flowhost/pkg/models"
)

var missingKeyPattern = regexp.MustCompile(`map has no entry for key "([^"]*)"`)

// Template renders Go text/template syntax with the scope as data root.
// For the template syntax a rendered JSON object or array, a canonical
// number or a boolean is returned as that value; the template-text syntax
// always returns the rendered text.
type Template struct {
	syntax string
	raw    bool
}

func NewTemplate() *Template {
	return &Template{syntax: models.SyntaxTemplate}
}

func NewTemplateText() *Template {
	return &Template{syntax: models.SyntaxTemplateText, raw: true}
}

func (t *Template) CanEvaluate(syntax string) bool {
	return syntax == t.syntax
}

func (t *Template) Evaluate(_ context.Context, text string, scope *models.Variables) (any, error) {
	tmpl, err := template.New("expression").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, invalid(t.syntax, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, scope.ToMap()); err != nil {
		if match := missingKeyPattern.FindStringSubmatch(err.Error()); match != nil {
			return nil, undefinedReference(t.syntax, match[1], err)
		}

		return nil, invalid(t.syntax, err)
	}

	if t.raw {
		return buf.String(), nil
	}

	return coerce(buf.String()), nil
}

func coerce(rendered string) any {
	result := strings.TrimSpace(rendered)

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult
		}

		return rendered
	}

	if num, ok := canonicalNumber(result); ok {
		return num
	}

	switch result {
	case "true":
		return true
	case "false":
		return false
	}

	return rendered
}

// canonicalNumber accepts only JSON numbers that format back to the same
// text, so "007", "1e3", "1.50", "NaN" and "Inf" stay strings.
func canonicalNumber(text string) (float64, bool) {
	if text == "" || (text[0] != '-' && (text[0] < '0' || text[0] > '9')) || !json.Valid([]byte(text)) {
		return 0, false
	}

	num, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
		return 0, false
	}

	if strconv.FormatFloat(num, 'f', -1, 64) != text {
		return 0, false
	}

	return num, true
}
