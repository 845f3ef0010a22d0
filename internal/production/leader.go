package production

import "strings"

// NormalizeLeaderID trims operator input. Leader ids are opaque strings;
// leading zeros are significant.
func NormalizeLeaderID(s string) string {
	return strings.TrimSpace(s)
}

// FormatStoredLeaderID repairs ids that lost their leading zeros by being
// stored as integers: pure-digit values shorter than 3 are left-padded with
// zeros. Longer values pass through untouched; nothing is parsed as a number.
func FormatStoredLeaderID(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	if isDigits(v) && len(v) < 3 {
		v = strings.Repeat("0", 3-len(v)) + v
	}
	return &v
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
