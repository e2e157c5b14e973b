package helper

import (
	"errors"
	"regexp"
	"strings"
)

var zeroRuns = regexp.MustCompile("000+")

// SplitByZeroRuns breaks a hex capture into individual payloads on runs of
// three or more zero nibbles (the inter-frame silence an OOK capture records
// as zeros). Fragments too short to be a frame are dropped.
func SplitByZeroRuns(hexPayload string) []string {
	parts := zeroRuns.Split(hexPayload, -1)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > 5 {
			items = append(items, p)
		}
	}
	return items
}

// FormatHex renders a hex payload as an escaped \xAB string for pasting into
// a transmit call. The input must have an even number of nibbles.
func FormatHex(hexPayload string) (string, error) {
	if len(hexPayload)%2 != 0 {
		return "", errors.New("odd length hex payload")
	}
	var b strings.Builder
	for i := 0; i < len(hexPayload); i += 2 {
		b.WriteString("\\x")
		b.WriteString(hexPayload[i : i+2])
	}
	return b.String(), nil
}

// DeBruijn returns the binary de Bruijn sequence B(2, n): every n-bit string
// appears exactly once as a (cyclic) substring. Used to brute-force
// fixed-code receivers with a single transmission.
func DeBruijn(n int) string {
	a := make([]int, 2*n)
	var sequence []int

	var db func(t, p int)
	db = func(t, p int) {
		if t > n {
			if n%p == 0 {
				sequence = append(sequence, a[1:p+1]...)
			}
			return
		}
		a[t] = a[t-p]
		db(t+1, p)
		for j := a[t-p] + 1; j < 2; j++ {
			a[t] = j
			db(t+1, t)
		}
	}
	db(1, 1)

	var b strings.Builder
	for _, bit := range sequence {
		if bit == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

// PackBits packs a "0101..." bit string into bytes, MSB first. A trailing
// partial byte is left-aligned and zero padded, matching how the capture
// hardware frames raw OOK bits.
func PackBits(bits string) []byte {
	out := make([]byte, 0, (len(bits)+7)/8)
	var cur byte
	n := 0
	for i := 0; i < len(bits); i++ {
		cur <<= 1
		if bits[i] == '1' {
			cur |= 1
		}
		n++
		if n == 8 {
			out = append(out, cur)
			cur, n = 0, 0
		}
	}
	if n > 0 {
		out = append(out, cur<<(8-n))
	}
	return out
}
