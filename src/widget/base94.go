package widget

import "fmt"

// base94Low is the first printable ASCII byte used by the encoding ('!').
const base94Low = '!'

// Encode maps each input byte b to two output bytes (b/94+'!', b%94+'!'),
// so the payload survives the OSC string grammar unescaped (spec §4.3,
// §6 "Base-94 encoding"). Encoding the empty slice yields the empty
// string (I5).
func Encode(data []byte) string {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		out = append(out, byte(b/94)+base94Low, byte(b%94)+base94Low)
	}
	return string(out)
}

// Decode inverts Encode. An odd-length input, or a byte outside the
// '!'..'~' range, is a malformed payload.
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("widget: base94 payload has odd length %d", len(s))
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi, lo := s[i], s[i+1]
		if hi < base94Low || hi > '~' || lo < base94Low || lo > '~' {
			return nil, fmt.Errorf("widget: base94 byte out of range at offset %d", i)
		}
		out = append(out, (hi-base94Low)*94+(lo-base94Low))
	}
	return out, nil
}
