package analyzer

// DefaultYAML exposes the embedded tables to external tests.
func DefaultYAML() []byte { return defaultLexicon }
