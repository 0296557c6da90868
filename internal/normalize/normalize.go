// Package normalize cleans full text before it is handed to downstream
// consumers. Every step is controlled by an independent switch in Options.
//
// Steps run in a fixed order: unicode repair, transliteration, URL, email,
// phone, number and currency replacement, contraction expansion, accent
// removal, punctuation removal and finally lowercasing. Replaced spans
// become placeholder tokens such as *URL* or *NUMBER*.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ErrUnknownOption is returned by ParseOptions for an unrecognized key.
var ErrUnknownOption = errors.New("normalize: unknown option")

// Placeholders substituted for removed spans.
const (
	URLPlaceholder      = "*URL*"
	EmailPlaceholder    = "*EMAIL*"
	PhonePlaceholder    = "*PHONE*"
	NumberPlaceholder   = "*NUMBER*"
	CurrencyPlaceholder = "*CUR*"
)

// Options selects the normalization steps.
type Options struct {
	FixUnicode        bool `yaml:"fix_unicode" json:"fix_unicode"`
	Lowercase         bool `yaml:"lowercase" json:"lowercase"`
	Transliterate     bool `yaml:"transliterate" json:"transliterate"`
	NoURLs            bool `yaml:"no_urls" json:"no_urls"`
	NoEmails          bool `yaml:"no_emails" json:"no_emails"`
	NoPhoneNumbers    bool `yaml:"no_phone_numbers" json:"no_phone_numbers"`
	NoNumbers         bool `yaml:"no_numbers" json:"no_numbers"`
	NoCurrencySymbols bool `yaml:"no_currency_symbols" json:"no_currency_symbols"`
	NoPunct           bool `yaml:"no_punct" json:"no_punct"`
	NoContractions    bool `yaml:"no_contractions" json:"no_contractions"`
	NoAccents         bool `yaml:"no_accents" json:"no_accents"`
}

// DefaultOptions enables every step except punctuation removal.
func DefaultOptions() Options {
	return Options{
		FixUnicode:        true,
		Lowercase:         true,
		Transliterate:     true,
		NoURLs:            true,
		NoEmails:          true,
		NoPhoneNumbers:    true,
		NoNumbers:         true,
		NoCurrencySymbols: true,
		NoPunct:           false,
		NoContractions:    true,
		NoAccents:         true,
	}
}

func (o *Options) fields() map[string]*bool {
	return map[string]*bool{
		"fix_unicode":         &o.FixUnicode,
		"lowercase":           &o.Lowercase,
		"transliterate":       &o.Transliterate,
		"no_urls":             &o.NoURLs,
		"no_emails":           &o.NoEmails,
		"no_phone_numbers":    &o.NoPhoneNumbers,
		"no_numbers":          &o.NoNumbers,
		"no_currency_symbols": &o.NoCurrencySymbols,
		"no_punct":            &o.NoPunct,
		"no_contractions":     &o.NoContractions,
		"no_accents":          &o.NoAccents,
	}
}

// ParseOptions builds Options from switch names. Switches not present in m
// are off.
func ParseOptions(m map[string]bool) (Options, error) {
	var o Options
	fields := o.fields()

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		dst, ok := fields[k]
		if !ok {
			return Options{}, fmt.Errorf("%w: %q", ErrUnknownOption, k)
		}
		*dst = m[k]
	}
	return o, nil
}

// Map returns the options keyed by switch name.
func (o Options) Map() map[string]bool {
	out := make(map[string]bool)
	for k, v := range o.fields() {
		out[k] = *v
	}
	return out
}

var (
	linebreakRE = regexp.MustCompile(`(\r\n|[\n\v])+`)
	spaceRE     = regexp.MustCompile(`[^\S\n]+`)
)

// NormalizeWhitespace collapses runs of line breaks into one newline and
// other whitespace runs into one space, then trims the ends.
func NormalizeWhitespace(text string) string {
	text = linebreakRE.ReplaceAllString(text, "\n")
	text = spaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var (
	urlRE      = regexp.MustCompile(`(?i)\b(?:(?:https?|ftp)://|www\.)[^\s<>"]+[^\s<>".,;:!?)\]]`)
	emailRE    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE    = regexp.MustCompile(`(?:\+?1[ .\-]?)?(?:\(\d{3}\)|\b\d{3})[ .\-]?\d{3}[ .\-]?\d{4}\b`)
	numberRE   = regexp.MustCompile(`(^|[^\w,.*])[+\-]?(\d{1,3}(?:,\d{3})+(?:\.\d*)?|\d*[.,]\d+|\d+)\b`)
	currencyRE = regexp.MustCompile(`\p{Sc}`)
	controlRE  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

var contractionRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b(can)'t\b`), "${1} not"},
	{regexp.MustCompile(`(?i)\b(w)on't\b`), "${1}ill not"},
	{regexp.MustCompile(`(?i)\b(sha)n't\b`), "${1}ll not"},
	{regexp.MustCompile(`(?i)\b(\w+)n't\b`), "${1} not"},
	{regexp.MustCompile(`(?i)\b(\w+)'ll\b`), "${1} will"},
	{regexp.MustCompile(`(?i)\b(\w+)'re\b`), "${1} are"},
	{regexp.MustCompile(`(?i)\b(\w+)'ve\b`), "${1} have"},
	{regexp.MustCompile(`(?i)\b(i)'m\b`), "${1} am"},
	{regexp.MustCompile(`(?i)\b(\w+)'d\b`), "${1} would"},
	{regexp.MustCompile(`(?i)\b(it|he|she|that|there|what|who|where)'s\b`), "${1} is"},
}

var unicodeFixes = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"ﬀ", "ff", "ﬁ", "fi", "ﬂ", "fl", "ﬃ", "ffi", "ﬄ", "ffl",
	"\ufffd", "",
)

var asciiFolds = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L", "đ", "d", "Đ", "D",
	"þ", "th", "Þ", "Th", "ð", "d", "Ð", "D",
	"–", "-", "—", "-", "…", "...", "\u00a0", " ",
	"«", `"`, "»", `"`,
)

// FixUnicode repairs common unicode damage: composes characters to NFC,
// folds full-width forms, expands ligatures, straightens curly quotes and
// drops control characters.
func FixUnicode(text string) string {
	t := transform.Chain(width.Fold, norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	out = unicodeFixes.Replace(out)
	return controlRE.ReplaceAllString(out, "")
}

// RemoveAccents strips combining marks after canonical decomposition.
func RemoveAccents(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Transliterate maps text to ASCII. Currency symbols are kept; other
// characters without an ASCII approximation are dropped.
func Transliterate(text string) string {
	text = asciiFolds.Replace(unicodeFixes.Replace(text))
	text = RemoveAccents(text)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			if unicode.Is(unicode.Sc, r) {
				return r
			}
			return -1
		}
		return r
	}, text)
}

// RemovePunct replaces every punctuation character by a space.
func RemovePunct(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, text)
}

// UnpackContractions expands English contractions.
func UnpackContractions(text string) string {
	for _, rule := range contractionRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return text
}

// ReplaceNumbers substitutes NumberPlaceholder for numbers.
func ReplaceNumbers(text string) string {
	return numberRE.ReplaceAllString(text, "${1}"+NumberPlaceholder)
}

// Normalize applies the steps enabled in opts.
func Normalize(text string, opts Options) string {
	if opts.FixUnicode {
		text = FixUnicode(text)
	}
	if opts.Transliterate {
		text = Transliterate(text)
	}
	if opts.NoURLs {
		text = urlRE.ReplaceAllString(text, URLPlaceholder)
	}
	if opts.NoEmails {
		text = emailRE.ReplaceAllString(text, EmailPlaceholder)
	}
	if opts.NoPhoneNumbers {
		text = phoneRE.ReplaceAllString(text, PhonePlaceholder)
	}
	if opts.NoNumbers {
		text = ReplaceNumbers(text)
	}
	if opts.NoCurrencySymbols {
		text = currencyRE.ReplaceAllString(text, CurrencyPlaceholder)
	}
	if opts.NoContractions {
		text = UnpackContractions(text)
	}
	if opts.NoAccents {
		text = RemoveAccents(text)
	}
	if opts.NoPunct {
		text = RemovePunct(text)
	}
	if opts.Lowercase {
		text = cases.Lower(language.Und).String(text)
	}
	return strings.TrimSpace(text)
}
