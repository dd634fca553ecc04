package core

// SIDBodyLength is the number of characters after the two-letter prefix.
const SIDBodyLength = 32

// ChannelPrefix marks chat channel SIDs.
const ChannelPrefix = "CH"

// ValidSID reports whether s is prefix followed by exactly 32 lowercase
// alphanumeric characters.
func ValidSID(s, prefix string) bool {
	if len(s) != len(prefix)+SIDBodyLength || s[:len(prefix)] != prefix {
		return false
	}
	for i := len(prefix); i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
