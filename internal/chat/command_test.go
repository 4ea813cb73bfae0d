package chat

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParse(t *testing.T) {
	cases := []struct {
		text string
		want Parsed
	}{
		{"  is the LS swap worth it ", Parsed{Command: CommandConverse, Args: "is the LS swap worth it"}},
		{"!ask   what is boost", Parsed{Command: CommandAsk, Name: "ask", Args: "what is boost"}},
		{"!ROAST Prius", Parsed{Command: CommandRoast, Name: "roast", Args: "Prius"}},
		{"!ping", Parsed{Command: CommandPing, Name: "ping"}},
		{"!forget", Parsed{Command: CommandClear, Name: "forget"}},
		{"!dance now", Parsed{Command: CommandUnknown, Name: "dance", Args: "now"}},
	}
	for _, tc := range cases {
		if got := Parse("!", tc.text); got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestSplitReply(t *testing.T) {
	if got := SplitReply("", 10); got != nil {
		t.Fatalf("SplitReply(empty) = %v, want nil", got)
	}
	if got := SplitReply("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("SplitReply(short) = %v", got)
	}

	text := strings.Repeat("é", 25)
	got := SplitReply(text, 10)
	if len(got) != 3 {
		t.Fatalf("len(SplitReply()) = %d, want 3", len(got))
	}
	if utf8.RuneCountInString(got[2]) != 5 {
		t.Fatalf("last chunk has %d runes, want 5", utf8.RuneCountInString(got[2]))
	}
	if strings.Join(got, "") != text {
		t.Fatalf("chunks do not reassemble the input")
	}
}
