// Package parser extracts drink fields from noisy OCR text.
//
// Printed labels come back from OCR with missing characters, merged lines and
// stray punctuation, so each field is found with a ladder of increasingly
// loose matches on a normalized copy of the text:
//
//   - brand: first entry of an ordered brand list found in the text
//   - sugar / ice: ordered rule tables, every keyword first, then every pattern
//   - price: ordered currency patterns, each result checked against [1, 200]
//   - name: the first line that is not a brand, sweetness, ice or price line
//
// Extraction never fails. A field that cannot be found is returned as nil.
package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"teascan/internal/logger"
	"teascan/pkg/models"
)

// Extractor turns OCR text into models.ParsedTeaInfo. It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	brands     []string
	sugarRules []Rule
	iceRules   []Rule
	log        zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBrands appends brands to the built-in list. Entries already present are
// ignored, and custom brands always rank after the built-in ones.
func WithBrands(brands ...string) Option {
	return func(e *Extractor) {
		for _, b := range brands {
			b = strings.TrimSpace(b)
			if b == "" || containsString(e.brands, b) {
				continue
			}
			e.brands = append(e.brands, b)
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Extractor) { e.log = log }
}

// New creates an Extractor with the default brand list and rule tables.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		brands:     append([]string(nil), DefaultBrands...),
		sugarRules: SugarRules,
		iceRules:   IceRules,
		log:        logger.WithComponent("parser"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Brands returns a copy of the brand list in match order.
func (e *Extractor) Brands() []string {
	return append([]string(nil), e.brands...)
}

// Parse extracts all five fields. The brand is found first because name
// extraction skips lines repeating it.
func (e *Extractor) Parse(text string) models.ParsedTeaInfo {
	e.log.Debug().
		Str("raw", text).
		Str("normalized", Normalize(text)).
		Msg("Parsing recognized text")

	brand := e.ExtractBrand(text)
	info := models.ParsedTeaInfo{
		Brand: brand,
		Name:  e.ExtractName(text, brand),
		Sugar: e.ExtractSugar(text),
		Ice:   e.ExtractIce(text),
		Price: e.ExtractPrice(text),
	}

	e.log.Info().
		Strs("filled", info.FilledFields()).
		Strs("missing", info.MissingFields()).
		Msg("Text parsed")

	return info
}

// ExtractBrand returns the first brand whose normalized form occurs in the
// normalized text.
func (e *Extractor) ExtractBrand(text string) *string {
	cleaned := Normalize(text)
	for _, brand := range e.brands {
		if strings.Contains(cleaned, Normalize(brand)) {
			e.log.Debug().Str("brand", brand).Msg("Brand matched")
			return stringPtr(brand)
		}
	}
	e.log.Debug().Msg("No brand matched")
	return nil
}

// ExtractSugar returns the canonical sugar level, or nil.
func (e *Extractor) ExtractSugar(text string) *string {
	return e.matchRules("sugar", e.sugarRules, text)
}

// ExtractIce returns the canonical ice level, or nil.
func (e *Extractor) ExtractIce(text string) *string {
	return e.matchRules("ice", e.iceRules, text)
}

func (e *Extractor) matchRules(field string, rules []Rule, text string) *string {
	cleaned := Normalize(text)

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(cleaned, Normalize(kw)) {
				e.log.Debug().
					Str("field", field).
					Str("keyword", kw).
					Str("value", rule.Value).
					Msg("Keyword matched")
				return stringPtr(rule.Value)
			}
		}
	}

	for _, rule := range rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(cleaned) {
			e.log.Debug().
				Str("field", field).
				Str("pattern", rule.Pattern.String()).
				Str("value", rule.Value).
				Msg("Pattern matched")
			return stringPtr(rule.Value)
		}
	}

	e.log.Debug().Str("field", field).Msg("No rule matched")
	return nil
}

// ExtractPrice returns the first plausible price in [1, 200], or nil.
func (e *Extractor) ExtractPrice(text string) *float64 {
	text = lineEndings.Replace(text)
	for _, pattern := range pricePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if price >= minPrice && price <= maxPrice {
			e.log.Debug().
				Str("pattern", pattern.String()).
				Float64("price", price).
				Msg("Price matched")
			return &price
		}
		e.log.Debug().
			Str("pattern", pattern.String()).
			Float64("rejected", price).
			Msg("Price out of range")
	}
	e.log.Debug().Msg("No price matched")
	return nil
}

// ExtractName picks the drink name. Lines that repeat the brand or carry
// sweetness, ice, currency or "N分" markers are skipped. Among the rest the
// first line with a drink keyword and 2-15 characters wins; failing that, the
// first remaining line of that length.
func (e *Extractor) ExtractName(text string, brand *string) *string {
	var candidates []string
	for _, line := range strings.Split(lineEndings.Replace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || e.isOptionLine(line, brand) {
			continue
		}
		candidates = append(candidates, line)
	}

	for _, line := range candidates {
		cleaned := Normalize(line)
		if !containsAny(cleaned, nameKeywords) {
			continue
		}
		if n := utf8.RuneCountInString(cleaned); n >= minNameLen && n <= maxNameLen {
			e.log.Debug().Str("name", line).Msg("Name matched by keyword")
			return stringPtr(line)
		}
	}

	for _, line := range candidates {
		if n := utf8.RuneCountInString(line); n >= minNameLen && n <= maxNameLen {
			e.log.Debug().Str("name", line).Msg("Name guessed from first plain line")
			return stringPtr(line)
		}
	}

	e.log.Debug().Msg("No name matched")
	return nil
}

func (e *Extractor) isOptionLine(line string, brand *string) bool {
	cleaned := Normalize(line)
	if brand != nil && strings.Contains(cleaned, Normalize(*brand)) {
		return true
	}
	return containsAny(cleaned, nameExcludeMarkers) || fractionPattern.MatchString(cleaned)
}

// Normalize removes whitespace and the punctuation OCR tends to scatter
// through label text. It is the form every keyword search runs on.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || isStrippedPunct(r) {
			return -1
		}
		return r
	}, text)
}

func isStrippedPunct(r rune) bool {
	switch r {
	case '，', '。', '、', '；', '：', '"', '\'', '“', '”', '‘', '’', '（', '）', '[', ']', '{', '}':
		return true
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func stringPtr(s string) *string { return &s }
