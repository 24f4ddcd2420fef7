package translate

import "context"

// Client converts text between languages. Implementations return an error on
// upstream failure; degradation policy lives in the Gateway.
type Client interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
