package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// mojibakeReplacer repairs UTF-8 text that was decoded as Latin-1 once,
// e.g. "CuauhtÃ©moc" -> "Cuauhtémoc".
var mojibakeReplacer = strings.NewReplacer(
	"Ã¡", "á", "Ã©", "é", "Ã­", "í", "Ã³", "ó", "Ãº", "ú",
	"Ã\u0081", "Á", "Ã‰", "É", "Ã\u008d", "Í", "Ã“", "Ó", "Ãš", "Ú",
	"Ã±", "ñ", "Ã‘", "Ñ", "Ã¼", "ü", "Ãœ", "Ü",
	"Â", "",
)

// RepairMojibake fixes common mis-decoded accented characters and returns
// the NFC form of s.
func RepairMojibake(s string) string {
	return norm.NFC.String(mojibakeReplacer.Replace(s))
}

// FoldASCII strips combining marks so accented Latin letters become their
// ASCII base letter ("á" -> "a", "ñ" -> "n").
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeCategory lowercases, trims and folds a crime category label to
// plain ASCII. Runes with no ASCII decomposition are dropped.
func NormalizeCategory(s string) string {
	s = FoldASCII(strings.ToLower(strings.TrimSpace(s)))
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}

// TitleName renders a station display name: mojibake repaired, trimmed and
// title-cased per word.
func TitleName(s string) string {
	words := strings.Fields(RepairMojibake(s))
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
