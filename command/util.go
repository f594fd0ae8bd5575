package command

import "strconv"

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// parseDecimalInt64 parses b as a base-10 signed integer, rejecting any
// input strconv itself would reject (leading/trailing junk, empty input,
// overflow). Unlike the RESP decoder's deliberately loose length-prefix
// scanner, command arguments that claim to be integers are validated
// strictly: a malformed count here is a user-facing "not an integer"
// error, not a wire-framing detail.
func parseDecimalInt64(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseUint(b []byte) (uint64, bool) {
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
