package i18n

import "net/http"

// Middleware injects a localizer into every request context. The
// language is resolved per request: the lang query parameter wins,
// then Accept-Language, then the server default.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prefs := make([]string, 0, 3)
			if lang := r.URL.Query().Get("lang"); lang != "" {
				prefs = append(prefs, lang)
			}
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				prefs = append(prefs, accept)
			}
			prefs = append(prefs, defaultLang)

			ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
