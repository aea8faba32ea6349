package transport

import (
	"fmt"
	"html"
	"strings"
)

// Telegram's legacy Markdown treats only these as structural.
var markdownReplacer = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// MarkdownV2 reserves a much larger set, and all of them must be escaped
// outside of entities.
var markdownV2Replacer = func() *strings.Replacer {
	const special = "\\_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, len(special)*2)
	for _, r := range special {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdown escapes text for Telegram's legacy Markdown parse mode.
func EscapeMarkdown(s string) string { return markdownReplacer.Replace(s) }

// EscapeMarkdownV2 escapes text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdownV2(s string) string { return markdownV2Replacer.Replace(s) }

// EscapeHTML escapes text for HTML parse mode.
func EscapeHTML(s string) string { return html.EscapeString(s) }

// EscapePlain returns s unchanged.
func EscapePlain(s string) string { return s }

// Escaper returns the escaping function for a markup dialect name.
func Escaper(dialect string) (func(string) string, error) {
	switch strings.ToLower(dialect) {
	case "", "plain", "none":
		return EscapePlain, nil
	case "markdown":
		return EscapeMarkdown, nil
	case "markdownv2":
		return EscapeMarkdownV2, nil
	case "html":
		return EscapeHTML, nil
	default:
		return nil, fmt.Errorf("unknown markup dialect: %q", dialect)
	}
}
