// Package language normalises the language tag that is passed through to
// transcription providers.
//
// Tags are parsed as BCP 47. Providers receive the ISO 639-1 base code
// (what the Whisper API expects) or the English display name (used in
// Gemini prompts).
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Tag is a parsed language tag. The zero value means "detect automatically".
type Tag struct {
	tag language.Tag
	set bool
}

// Parse accepts BCP 47 tags ("en", "pt-BR") and English language names
// ("english"). Empty input, "auto" and "native" yield the zero Tag.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "auto", "native":
		return Tag{}, nil
	}

	if t, err := language.Parse(s); err == nil {
		return Tag{tag: t, set: true}, nil
	}

	if t, ok := byName[strings.ToLower(s)]; ok {
		return Tag{tag: t, set: true}, nil
	}

	return Tag{}, fmt.Errorf("unrecognised language %q", s)
}

// IsAuto reports whether no language was requested.
func (t Tag) IsAuto() bool {
	return !t.set
}

// Code returns the ISO 639-1 base code, or "" for auto.
func (t Tag) Code() string {
	if !t.set {
		return ""
	}
	base, _ := t.tag.Base()
	return base.String()
}

// Name returns the English name of the language, or "" for auto.
func (t Tag) Name() string {
	if !t.set {
		return ""
	}
	return display.English.Tags().Name(t.tag)
}

// String returns the canonical BCP 47 form.
func (t Tag) String() string {
	if !t.set {
		return ""
	}
	return t.tag.String()
}

var byName = func() map[string]language.Tag {
	tags := []language.Tag{
		language.English, language.Spanish, language.French, language.German,
		language.Italian, language.Portuguese, language.Japanese, language.Korean,
		language.Chinese, language.Russian, language.Arabic, language.Hindi,
		language.Dutch, language.Polish, language.Swedish, language.Danish,
		language.Norwegian, language.Finnish, language.Turkish, language.Ukrainian,
	}
	m := make(map[string]language.Tag, len(tags))
	for _, t := range tags {
		m[strings.ToLower(display.English.Tags().Name(t))] = t
	}
	return m
}()
