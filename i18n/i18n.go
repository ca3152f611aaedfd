// Package i18n resolves the display locale for a comment thread session.
// It only decides which locale code the presentation layer should use;
// message tables belong to the presentation layer.
package i18n

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when no preferred language matches a supported one.
const DefaultLocale = "en"

// supported mirrors the locale table of the widget, most specific first
// within each language.
var supported = []string{
	"en", "en-US",
	"zh", "zh-CN", "zh-TW",
	"pt", "pt-BR",
	"ja", "ja-JP",
	"he", "he-IL",
	"ko", "ko-KR",
	"fr", "fr-FR",
}

var matcher language.Matcher

func init() {
	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		tags = append(tags, language.Make(code))
	}
	matcher = language.NewMatcher(tags)
}

// Supported returns the supported locale codes.
func Supported() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// Resolve picks the session locale. An explicitly configured locale wins
// verbatim; otherwise the ordered preference list is matched against the
// supported locales and the first match wins, falling back to
// DefaultLocale.
func Resolve(configured string, preferences []string) string {
	if configured != "" {
		return configured
	}

	_, index, conf := matcher.Match(parseTags(preferences)...)
	if conf == language.No {
		return DefaultLocale
	}
	return supported[index]
}

// EnvLanguages derives an ordered language preference list from the
// process environment, the closest analog to a browser's language list.
func EnvLanguages() []string {
	var prefs []string
	if v := os.Getenv("LANGUAGE"); v != "" {
		prefs = append(prefs, strings.Split(v, ":")...)
	}
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			prefs = append(prefs, v)
		}
	}

	out := make([]string, 0, len(prefs))
	for _, p := range prefs {
		// "en_US.UTF-8" -> "en-US"
		p = strings.SplitN(p, ".", 2)[0]
		p = strings.ReplaceAll(p, "_", "-")
		if p != "" && p != "C" && p != "POSIX" {
			out = append(out, p)
		}
	}
	return out
}

func parseTags(codes []string) []language.Tag {
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
