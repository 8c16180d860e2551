package services

import (
	"golang.org/x/text/language"

	"vau-explorer/models"
)

var supportedLanguages = []language.Tag{
	language.Portuguese, // base content
	language.English,
	language.Spanish,
	language.French,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// ResolveLanguage picks the content language for the first preference that
// matches a supported one. Preferences are language tags or Accept-Language
// values. Anything unmatched falls back to the base language.
func ResolveLanguage(preferences ...string) string {
	for _, p := range preferences {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := languageMatcher.Match(tags...)
		if conf == language.No {
			continue
		}
		base, _ := supportedLanguages[idx].Base()
		return base.String()
	}
	return models.DefaultLanguage
}
