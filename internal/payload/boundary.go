package payload

// Boundary represents a prefix/suffix pair for closing SQL context.
type Boundary struct {
	Prefix  string
	Suffix  string
	Comment string
}

// DetectionBoundaries returns the contexts every differential detector
// tries, most common first.
func DetectionBoundaries() []Boundary {
	return []Boundary{
		{"", "", "numeric"},
		{"", "-- -", "numeric, comment"},
		{"'", "-- -", "single quote, comment"},
		{"\"", "-- -", "double quote, comment"},
		{")", "-- -", "close paren, comment"},
		{"')", "-- -", "single quote close paren, comment"},
		{"'", "#", "single quote, hash comment"},
	}
}

// Breakers returns the syntax-breaking suffixes the error-based detector
// appends to a value. Each one leaves a quote, parenthesis, or comment
// unbalanced in a naively concatenated query.
func Breakers() []string {
	return []string{
		"'",
		"\"",
		"')",
		"'))",
		"\")",
		"`",
		"\\",
		"';--",
		"'--",
		"' #",
		"%' AND '",
		"1'1",
	}
}

// Conditions returns the always-true and always-false expressions used by
// boolean and time probes.
func Conditions() (trueCond, falseCond string) {
	return "1=1", "1=2"
}
