package evdump

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a<b&c", "a&lt;b&amp;c"},
		{"<>", "&lt;&gt;"},
		{"&&", "&amp;&amp;"},
		{"map[string]<-chan int", "map[string]&lt;-chan int"},
		{"&lt;", "&amp;lt;"},
	}
	for _, tt := range tests {
		if got := Escape(tt.in); got != tt.out {
			t.Errorf("Escape(%q) = %q, wanted %q", tt.in, got, tt.out)
		}
	}
}

func TestEscapeTwiceEscapesOwnOutput(t *testing.T) {
	if got := Escape(Escape("<")); got != "&amp;lt;" {
		t.Errorf("Escape(Escape(<)) = %q, wanted %q", got, "&amp;lt;")
	}
	if got := Escape(Escape("a<b&c")); got != "a&amp;lt;b&amp;amp;c" {
		t.Errorf("Escape(Escape(a<b&c)) = %q, wanted %q", got, "a&amp;lt;b&amp;amp;c")
	}
}
