package codevalidator

import (
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

// ExtractCode pulls source out of an LLM's markdown response: the largest
// fenced block tagged with preferredLanguage if there is one, else the
// largest fenced block of any language, else the text unchanged (the model
// may have skipped fencing entirely).
func ExtractCode(text string, preferredLanguage string) string {
	matches := fencedBlockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}

	var preferred, any string
	for _, m := range matches {
		lang, body := strings.ToLower(strings.TrimSpace(m[1])), m[2]
		if len(body) > len(any) {
			any = body
		}
		if preferredLanguage != "" && languageTagMatches(lang, preferredLanguage) && len(body) > len(preferred) {
			preferred = body
		}
	}

	if preferred != "" {
		return stripTrailingNewline(preferred)
	}
	return stripTrailingNewline(any)
}

// stripTrailingNewline removes exactly the one newline WrapInFence inserts
// before the closing fence, so ExtractCode(WrapInFence(code, lang)) == code
// even when code itself ends in blank lines.
func stripTrailingNewline(s string) string {
	return strings.TrimSuffix(s, "\n")
}

// WrapInFence renders code as a fenced markdown block, the inverse of
// ExtractCode for any code that does not itself contain "```".
func WrapInFence(code, language string) string {
	return "```" + language + "\n" + code + "\n```"
}

func languageTagMatches(tag, language string) bool {
	if tag == language {
		return true
	}
	switch language {
	case "javascript":
		return tag == "js" || tag == "jsx"
	case "typescript":
		return tag == "ts" || tag == "tsx"
	case "python":
		return tag == "py" || tag == "py3"
	}
	return false
}
