package core

import "strings"

// Theme is a topical indicator detected in a message.
type Theme string

const (
	ThemeWork         Theme = "work"
	ThemeRelationship Theme = "relationship"
	ThemeSleep        Theme = "sleep"
	ThemeLoneliness   Theme = "loneliness"
	ThemeFuture       Theme = "future"
	ThemeFinancial    Theme = "financial"
	ThemeHealth       Theme = "health"
)

type themeIndicator struct {
	theme      Theme
	indicators []string
}

// themeIndicators is scanned in declaration order; the order carries no priority.
var themeIndicators = []themeIndicator{
	{ThemeWork, []string{"work", "job", "career", "boss"}},
	{ThemeRelationship, []string{"relationship", "partner", "family", "friend"}},
	{ThemeSleep, []string{"sleep", "tired", "exhausted", "rest"}},
	{ThemeLoneliness, []string{"lonely", "alone", "isolated", "no one"}},
	{ThemeFuture, []string{"future", "hopeless", "no point", "pointless"}},
	{ThemeFinancial, []string{"money", "financial", "bills", "debt"}},
	{ThemeHealth, []string{"health", "sick", "pain", "medical"}},
}

// ExtractThemes returns every theme with at least one indicator in message.
// Each theme appears at most once.
func ExtractThemes(message string) []Theme {
	text := Normalize(message)
	if text == "" {
		return nil
	}

	var themes []Theme
	for _, ti := range themeIndicators {
		for _, ind := range ti.indicators {
			if strings.Contains(text, ind) {
				themes = append(themes, ti.theme)
				break
			}
		}
	}
	return themes
}

// HasTheme reports whether t is in themes.
func HasTheme(themes []Theme, t Theme) bool {
	for _, x := range themes {
		if x == t {
			return true
		}
	}
	return false
}
