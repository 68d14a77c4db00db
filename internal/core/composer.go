package core

import (
	"errors"
	"strings"
)

// MaxFollowUps caps the follow-up questions attached to one reply.
const MaxFollowUps = 3

var errNoTemplate = errors.New("no reply template for level")

// Composer turns a classification into a reply using a TemplateBank.
type Composer struct {
	bank *TemplateBank
}

func NewComposer(bank *TemplateBank) *Composer {
	if bank == nil {
		bank = DefaultTemplateBank()
	}
	return &Composer{bank: bank}
}

// Compose builds the reply to message. session is the state before this
// message: its completed exchanges decide between first-turn and follow-up tone.
func (c *Composer) Compose(message string, cls ClassificationResult, session Session) (ComposedResponse, error) {
	if !cls.Level.Valid() {
		return ComposedResponse{}, &CompositionFault{Level: cls.Level, Cause: errNoTemplate}
	}

	exchange := session.CompletedExchanges() + 1
	text, ok := c.bank.Reply(cls.Level, exchange == 1)
	if !ok {
		return ComposedResponse{}, &CompositionFault{Level: cls.Level, Cause: errNoTemplate}
	}

	themes := ExtractThemes(message)
	if e, ok := c.bank.Elaboration(themes); ok {
		text += "\n\n" + e
	}

	return ComposedResponse{
		Text:              text,
		Classification:    cls,
		Themes:            themes,
		Suggestions:       c.bank.SuggestionsFor(cls.Level),
		FollowUps:         c.followUps(cls.Level, themes),
		EmergencyContacts: c.bank.ContactsFor(cls.Level),
	}, nil
}

// followUps puts the level prompts first, then theme prompts, drops repeats and
// keeps at most MaxFollowUps.
func (c *Composer) followUps(level Level, themes []Theme) []string {
	candidates := append([]string(nil), c.bank.LevelFollowUps[level]...)
	for _, t := range themes {
		candidates = append(candidates, c.bank.ThemeFollowUps[t]...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, MaxFollowUps)
	for _, q := range candidates {
		key := strings.TrimSpace(q)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == MaxFollowUps {
			break
		}
	}
	return out
}
