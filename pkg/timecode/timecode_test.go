package timecode

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "MM:SS", input: "05:30", expected: 330},
		{name: "HH:MM:SS", input: "01:02:03", expected: 3723},
		{name: "zero", input: "00:00", expected: 0},
		{name: "unpadded minutes", input: "5:07", expected: 307},
		{name: "surrounding whitespace", input: " 10:00 ", expected: 600},
		{name: "just under an hour", input: "59:59", expected: 3599},
		{name: "large hours", input: "11:00:01", expected: 39601},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "90", "1:2:3:4", "aa:bb", "10:60", "-1:30", "01:-2:03"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", input)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "00:00:00"},
		{330, "00:05:30"},
		{3723, "01:02:03"},
		{3599, "00:59:59"},
		{-5, "00:00:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.expected {
			t.Errorf("Format(%d) = %q, want %q", tt.seconds, got, tt.expected)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 60, 3599, 3600, 39601} {
		got, err := Parse(Format(secs))
		if err != nil {
			t.Fatalf("round trip of %d: %v", secs, err)
		}
		if got != secs {
			t.Errorf("round trip of %d produced %d", secs, got)
		}
	}
}
