package logging

import "regexp"

// Placeholder replaces secret material in log output.
const Placeholder = "[REDACTED]"

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	apiKeyFieldPattern = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|authorization|token|secret)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`,
	)
	standaloneKeyPattern = regexp.MustCompile(`(?i)sk-[A-Za-z0-9]{16,}`)
)

// Redact masks bearer tokens and API keys before a line reaches any sink.
func Redact(line string) string {
	out := bearerTokenPattern.ReplaceAllString(line, "${1}"+Placeholder)
	out = apiKeyFieldPattern.ReplaceAllString(out, "${1}"+Placeholder+"${3}")
	out = standaloneKeyPattern.ReplaceAllString(out, Placeholder)
	return out
}
