// Package codec maps grid cell indices onto the character codes stored in
// grid rows. Codes 34 (") and 92 (\) are skipped so rows never need escaping
// inside a JSON string.
package codec

const base = 32

// Encode returns the character code that stores index i.
func Encode(i int) int {
	c := i + base
	if c >= 34 {
		c++
	}
	if c >= 92 {
		c++
	}
	return c
}

// Decode returns the index stored in character code c.
// Codes outside the alphabet produce an unspecified index.
func Decode(c int) int {
	if c >= 93 {
		c--
	}
	if c >= 35 {
		c--
	}
	return c - base
}
