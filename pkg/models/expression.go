package models

// Built-in expression syntaxes.
const (
	SyntaxPlainText    = "plaintext"
	SyntaxTemplate     = "template"
	SyntaxTemplateText = "template-text" // Rendered like template, never coerced
	SyntaxJSONata      = "jsonata"
)

// Expression is raw text in a named syntax, evaluated against a Variables scope
// every time the field holding it is read.
type Expression struct {
	Syntax string `json:"syntax" yaml:"syntax" validate:"required"`
	Text   string `json:"text"   yaml:"text"`
}

// PlainText returns a literal expression.
func PlainText(text string) Expression {
	return Expression{Syntax: SyntaxPlainText, Text: text}
}

func Template(text string) Expression {
	return Expression{Syntax: SyntaxTemplate, Text: text}
}

func JSONata(text string) Expression {
	return Expression{Syntax: SyntaxJSONata, Text: text}
}
