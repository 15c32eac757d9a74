package icp

import (
	"strings"
)

// ParseFingerprintOutput reads the report printed by
// `openssl x509 -fingerprint -sha1 -modulus -noout`. The first non-empty line
// holds the fingerprint and the second the modulus. Colons are dropped and
// the value after the last '=' is kept; a missing line yields "".
func ParseFingerprintOutput(out string) *SigningInfo {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}

	info := &SigningInfo{}
	if len(lines) > 0 {
		info.SHA1 = lineValue(lines[0])
	}
	if len(lines) > 1 {
		info.Modulus = lineValue(lines[1])
	}
	return info
}

func lineValue(line string) string {
	line = strings.ReplaceAll(line, ":", "")
	if i := strings.LastIndex(line, "="); i >= 0 {
		return line[i+1:]
	}
	return line
}
