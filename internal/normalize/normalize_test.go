package normalize

import "testing"

func TestText_CollapsesAndStrips(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  hello \n\t world  ", "hello world"},
		{"Advertisement Great story here", "Great story here"},
		{"intro CLICK HERE for more", "intro for more"},
		{"see read   more below", "see below"},
		{"Sponsored", ""},
		{"Advertisements are fine", "Advertisements are fine"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Text(c.in); got != c.want {
			t.Fatalf("Text(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"  a  b\n\nc ",
		"Read Click here more",
		"Continue Read more reading now",
		"Sponsored\tSponsored content Advertisement",
		"plain text with no noise",
		"émoji 🙂   spacing here",
	}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Fatalf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestCountSemanticWords(t *testing.T) {
	if got := CountSemanticWords("**Bold** text, 3 words!"); got != 4 {
		t.Fatalf("got %d want 4", got)
	}
	if got := CountSemanticWords("- item one\n• item two\n* * *"); got != 4 {
		t.Fatalf("bullets: got %d want 4", got)
	}
	if got := CountSemanticWords("  "); got != 0 {
		t.Fatalf("empty: got %d", got)
	}
}

func TestReadingTime(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 200: 1, 201: 2, 1000: 5}
	for words, want := range cases {
		if got := ReadingTime(words); got != want {
			t.Fatalf("ReadingTime(%d) = %d, want %d", words, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 10, "..."); got != "héllo" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := Truncate("héllo world", 5, "..."); got != "héllo..." {
		t.Fatalf("got %q", got)
	}
}
