package coredata

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/coredata/internal/normalize"
	"github.com/hupe1980/coredata/internal/table"
)

// Record is one stored record: field name to verbatim JSON value.
type Record = table.Record

// PreprocessOptions selects the full-text normalization steps.
type PreprocessOptions = normalize.Options

// DefaultPreprocessOptions enables every normalization step except
// punctuation removal.
func DefaultPreprocessOptions() PreprocessOptions {
	return normalize.DefaultOptions()
}

// ParsePreprocessOptions builds PreprocessOptions from switch names such as
// "lowercase" or "no_urls". Unknown names yield a ConfigError.
func ParsePreprocessOptions(m map[string]bool) (PreprocessOptions, error) {
	o, err := normalize.ParseOptions(m)
	if err != nil {
		return PreprocessOptions{}, translateError("parse preprocess options", "", err)
	}
	return o, nil
}

// IdentityExtractor returns the record unchanged.
func IdentityExtractor(r Record) (any, error) {
	return r, nil
}

// FullText returns the record's full text as a string. ok is false when the
// record has no fullText field or it is null.
func FullText(r Record) (text string, ok bool, err error) {
	raw, present := r[table.FieldFullText]
	if !present || string(raw) == "null" {
		return "", false, nil
	}
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false, fmt.Errorf("decode fullText: %w", err)
	}
	return text, true, nil
}

// CleanText collapses whitespace and then applies opts.
func CleanText(text string, opts PreprocessOptions) string {
	return normalize.Normalize(normalize.NormalizeWhitespace(text), opts)
}

// FullTextExtractor returns the record's full text as a string, cleaned
// with opts when opts is non-nil. Records without full text are returned
// unchanged.
func FullTextExtractor(opts *PreprocessOptions) Extractor {
	return func(r Record) (any, error) {
		text, ok, err := FullText(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			return r, nil
		}
		if opts != nil {
			text = CleanText(text, *opts)
		}
		return text, nil
	}
}

// MetadataFullText pairs a record's metadata with its full text.
type MetadataFullText struct {
	Metadata Record `json:"metadata"`
	FullText string `json:"fullText"`
	// HasFullText is false when the record carried no full text.
	HasFullText bool `json:"hasFullText"`
}

// MetadataFullTextPairExtractor splits a record into its metadata and its
// full text, cleaned with opts when opts is non-nil.
func MetadataFullTextPairExtractor(opts *PreprocessOptions) Extractor {
	return func(r Record) (any, error) {
		text, ok, err := FullText(r)
		if err != nil {
			return nil, err
		}
		if ok && opts != nil {
			text = CleanText(text, *opts)
		}
		return MetadataFullText{
			Metadata:    r.Metadata(),
			FullText:    text,
			HasFullText: ok,
		}, nil
	}
}
