package api

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/cenety/saascore/pkg/limits"
)

// SupportedLanguages have translated limit messages.
var SupportedLanguages = []language.Tag{language.English, language.German}

// language picks the best supported match for Accept-Language and stores it
// for limit denial messages. Requests without a usable header get the
// default language.
func (a *API) language(next http.Handler) http.Handler {
	supported := append([]language.Tag{a.defaultLang}, SupportedLanguages...)
	matcher := language.NewMatcher(supported)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := a.defaultLang
		if header := r.Header.Get("Accept-Language"); header != "" {
			if prefs, _, err := language.ParseAcceptLanguage(header); err == nil && len(prefs) > 0 {
				_, idx, conf := matcher.Match(prefs...)
				if conf != language.No {
					tag = supported[idx]
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(limits.WithLanguage(r.Context(), tag)))
	})
}
