// Package textclean normalizes text passing between the engine and the
// model: prompts on the way out, raw responses on the way back in.
package textclean

import (
	"strings"
)

// replacements maps cosmetic characters that models and document
// extractors tend to emit onto plain ASCII equivalents.
var replacements = strings.NewReplacer(
	// dashes and hyphens
	"—", "-", // em dash
	"–", "-", // en dash
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"−", "-", // minus sign

	// spaces and zero-width characters
	"\u00a0", " ", // no-break space
	"\u200b", "", // zero width space
	"\u200c", "", // zero width non-joiner
	"\u200d", "", // zero width joiner
	"\u2060", "", // word joiner
	"\ufeff", "", // zero width no-break space

	// bullets and ornaments
	"…", "...", // ellipsis
	"•", "*", // bullet
	"·", "*", // middle dot
	"○", "*", // white circle
	"●", "*", // black circle
	"▪", "*", // black small square
	"■", "*", // black square
	"□", "*", // white square
	"★", "*", // black star
	"☆", "*", // white star
	"➢", ">",
	"➣", ">",
	"➤", ">",
	"⇒", "=>",
	"⇨", "=>",

	// stray HTML entities
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// smartQuotes maps typographic quotes onto straight ones. Applied to
// responses only: JSON parsing chokes on them, prompts tolerate them.
var smartQuotes = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‚", "'",
	"„", `"`,
	"‘", "'",
	"’", "'",
)

// CleanResponse strips tagging artifacts from raw model output so the
// parser sees plain ASCII punctuation.
func CleanResponse(text string) string {
	return smartQuotes.Replace(replacements.Replace(text))
}

// CleanPrompt normalizes prompt text before it is recorded or sent:
// substitution table plus whitespace collapse per line.
func CleanPrompt(text string) string {
	text = replacements.Replace(text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
