package fts

import "testing"

// WHAT: CJK runs become overlapping bigrams plus a trailing unigram,
// everything else passes through.
// WHY: unicode61 would otherwise index a whole Han run as one token and
// short queries would never match; without the trailing unigram the final
// character of a run starts no token, so a one-character prefix query for
// it would find nothing.
func TestSegment(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello world", "hello world"},
		{"中文測試", "中文 文測 測試 試"},
		{"天", "天"},
		{"內容", "內容 容"},
		{"abc中文def", "abc 中文 文 def"},
		{"カタカナ", "カタ タカ カナ ナ"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Segment(c.in); got != c.want {
			t.Errorf("Segment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// WHAT: query terms are quoted; multi-character CJK terms become bigram
// phrases without the index-side trailing unigram, while ASCII terms and
// single CJK characters get prefix matching.
func TestQueryExpr(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello", `"hello"*`},
		{"hello world", `"hello"* "world"*`},
		{"中文測試", `"中文 文測 測試"`},
		{"天", `"天"*`},
		{"中", `"中"*`},
		{`say "hi"`, `"say"* """hi"""*`},
	}
	for _, c := range cases {
		if got := QueryExpr(c.in); got != c.want {
			t.Errorf("QueryExpr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// WHAT: LIKE metacharacters are escaped so user input matches literally.
func TestLikePattern(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "%plain%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`back\slash`, `%back\\slash%`},
	}
	for _, c := range cases {
		if got := LikePattern(c.in); got != c.want {
			t.Errorf("LikePattern(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
