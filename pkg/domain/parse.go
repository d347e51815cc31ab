package domain

import (
	"strconv"
	"strings"
)

// ParseCount converts raw user input into a counter value. It reads the
// leading optional sign and decimal digits ("12", " 7 ", "3.5" -> 3,
// "12abc" -> 12). Anything unparsable, out of range or negative yields 0.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return clampCount(n)
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
