package textclean

import "testing"

func TestCleanResponse_NormalizesPunctuation(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"em—dash", "em-dash"},
		{"en–dash", "en-dash"},
		{"ellipsis…", "ellipsis..."},
		{"• bullet", "* bullet"},
		{"zero\u200bwidth", "zerowidth"},
		{"\ufeffbom stripped", "bom stripped"},
		{"a\u00a0space", "a space"},
		{"&amp;&lt;&gt;", "&<>"},
		{"“quoted”", `"quoted"`},
		{"it’s", "it's"},
	}
	for _, tc := range cases {
		if got := CleanResponse(tc.in); got != tc.want {
			t.Errorf("CleanResponse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanPrompt_CollapsesWhitespace(t *testing.T) {
	in := "  first   line  \n\tsecond\t\tline\t\n"
	want := "first line\nsecond line"

	if got := CleanPrompt(in); got != want {
		t.Errorf("CleanPrompt = %q, want %q", got, want)
	}
}

func TestCleanPrompt_KeepsSmartQuotes(t *testing.T) {
	// prompts tolerate typographic quotes; only responses are normalized
	in := "say “hello”"
	if got := CleanPrompt(in); got != in {
		t.Errorf("CleanPrompt must not touch quotes, got %q", got)
	}
}
