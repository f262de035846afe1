// Package hasher provides the 32-bit string hashes used for song identity
// and artist identity. Both accumulate with x = (x<<5) + x + byte over a
// 5381 seed; the folded variant normalises Latin letters with diacritics
// onto their ASCII lowercase base letter first, so "Beyoncé" and "beyonce"
// hash identically.
package hasher

const seed = 5381

// Hash returns the identity hash of s, byte for byte. An empty string
// hashes to 0.
func Hash(s string) uint32 {
	if s == "" {
		return 0
	}

	h := uint32(seed)
	for i := 0; i < len(s); i++ {
		h = (h << 5) + h + uint32(s[i])
	}

	return h
}

// FoldedHash returns the diacritic-insensitive, case-insensitive hash of s.
// The string is decoded as UTF-8; code points covered by the folding table
// contribute their ASCII base letter, plain ASCII contributes its lowercase
// form and anything else contributes its low byte. An empty string hashes
// to 0.
func FoldedHash(s string) uint32 {
	if s == "" {
		return 0
	}

	h := uint32(seed)
	for _, r := range s {
		var b byte
		switch {
		case r < 0x80:
			b = lowerASCII(byte(r))
		default:
			if folded, ok := foldTable[r]; ok {
				b = folded
			} else {
				b = byte(r)
			}
		}
		h = (h << 5) + h + uint32(b)
	}

	return h
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// foldTable maps Latin letters with diacritics onto their canonical ASCII
// lowercase letter. The covered letters are a c d e g h i j k l n o r s t
// u w y z.
var foldTable = buildFoldTable()

func buildFoldTable() map[rune]byte {
	groups := map[byte][]rune{
		'a': {0x00C0, 0x00C1, 0x00C2, 0x00C3, 0x00C4, 0x00C5, 0x00E0, 0x00E1, 0x00E2, 0x00E3, 0x00E4, 0x00E5, 0x0100, 0x0101, 0x0102, 0x0103, 0x0104, 0x0105},
		'c': {0x00C7, 0x00E7, 0x0106, 0x0107, 0x0108, 0x0109, 0x010A, 0x010B, 0x010C, 0x010D},
		'd': {0x010E, 0x010F, 0x0110, 0x0111},
		'e': {0x00C8, 0x00C9, 0x00CA, 0x00CB, 0x00E8, 0x00E9, 0x00EA, 0x00EB, 0x0112, 0x0113, 0x0114, 0x0115, 0x0116, 0x0117, 0x0118, 0x0119, 0x011A, 0x011B},
		'g': {0x011C, 0x011D, 0x011E, 0x011F, 0x0120, 0x0121, 0x0122, 0x0123},
		'h': {0x0124, 0x0125, 0x0126, 0x0127},
		'i': {0x00CC, 0x00CD, 0x00CE, 0x00CF, 0x00EC, 0x00ED, 0x00EE, 0x00EF, 0x0128, 0x0129, 0x012A, 0x012B, 0x012C, 0x012D, 0x012E, 0x012F, 0x0130, 0x0131},
		'j': {0x0134, 0x0135},
		'k': {0x0136, 0x0137},
		'l': {0x0139, 0x013A, 0x013B, 0x013C, 0x013D, 0x013E, 0x013F, 0x0140, 0x0141, 0x0142},
		'n': {0x00D1, 0x00F1, 0x0143, 0x0144, 0x0145, 0x0146, 0x0147, 0x0148, 0x0149},
		'o': {0x00D2, 0x00D3, 0x00D4, 0x00D5, 0x00D6, 0x00D8, 0x00F2, 0x00F3, 0x00F4, 0x00F5, 0x00F6, 0x00F8, 0x014C, 0x014D, 0x014E, 0x014F, 0x0150, 0x0151},
		'r': {0x0154, 0x0155, 0x0156, 0x0157, 0x0158, 0x0159},
		's': {0x015A, 0x015B, 0x015C, 0x015D, 0x015E, 0x015F, 0x0160, 0x0161},
		't': {0x0162, 0x0163, 0x0164, 0x0165, 0x0166, 0x0167},
		'u': {0x00D9, 0x00DA, 0x00DB, 0x00DC, 0x00F9, 0x00FA, 0x00FB, 0x00FC, 0x0168, 0x0169, 0x016A, 0x016B, 0x016C, 0x016D, 0x016E, 0x016F, 0x0170, 0x0171, 0x0172, 0x0173},
		'w': {0x0174, 0x0175},
		'y': {0x00DD, 0x00FD, 0x00FF, 0x0176, 0x0177, 0x0178},
		'z': {0x0179, 0x017A, 0x017B, 0x017C, 0x017D, 0x017E},
	}

	table := make(map[rune]byte)
	for base, runes := range groups {
		for _, r := range runes {
			table[r] = base
		}
	}

	return table
}
