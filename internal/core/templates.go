package core

// ReplyTemplates holds the two tones of reply for one level.
type ReplyTemplates struct {
	First    string
	FollowUp string
}

// TemplateBank is the static text the composer draws from.
type TemplateBank struct {
	Replies           map[Level]ReplyTemplates
	Elaborations      map[Theme]string
	ElaborationOrder  []Theme
	LevelFollowUps    map[Level][]string
	ThemeFollowUps    map[Theme][]string
	Suggestions       map[Level][]string
	EmergencyContacts []string
}

// Reply returns the template for level and turn, and false if level has none.
func (b *TemplateBank) Reply(level Level, firstTurn bool) (string, bool) {
	r, ok := b.Replies[level]
	if !ok {
		return "", false
	}
	if firstTurn {
		return r.First, r.First != ""
	}
	return r.FollowUp, r.FollowUp != ""
}

// Elaboration picks the single elaboration for the highest-priority theme present.
func (b *TemplateBank) Elaboration(themes []Theme) (string, bool) {
	for _, t := range b.ElaborationOrder {
		if HasTheme(themes, t) {
			if e, ok := b.Elaborations[t]; ok {
				return e, true
			}
		}
	}
	return "", false
}

// SuggestionsFor returns a copy of the coping suggestions for level.
func (b *TemplateBank) SuggestionsFor(level Level) []string {
	return append([]string(nil), b.Suggestions[level]...)
}

// ContactsFor returns a copy of the emergency contacts, or nil when level does not warrant them.
func (b *TemplateBank) ContactsFor(level Level) []string {
	if !level.NeedsEmergencyContacts() {
		return nil
	}
	return append([]string(nil), b.EmergencyContacts...)
}

// DefaultTemplateBank returns the built-in templates.
func DefaultTemplateBank() *TemplateBank {
	return &TemplateBank{
		Replies: map[Level]ReplyTemplates{
			LevelCritical: {
				First: "I'm very concerned about what you're saying. Your life has value.\n\n" +
					"Please call 988 immediately - the National Suicide Prevention Lifeline is available 24/7.\n\n" +
					"If you're in immediate danger, call 911 or go to the nearest emergency room.\n\n" +
					"I'm here to listen, but professional help is available.",
				FollowUp: "I'm still very concerned about your safety, and I'm glad you're still talking with me.\n\n" +
					"Please call 988 now - the National Suicide Prevention Lifeline is available 24/7, or text HOME to 741741.\n\n" +
					"If you're in immediate danger, call 911 or go to the nearest emergency room.\n\n" +
					"You don't have to carry this alone. I'm here with you.",
			},
			LevelHigh: {
				First: "I hear you're going through a difficult time. Depression and hopelessness are treatable.\n\n" +
					"You don't have to go through this alone. Would you like to talk more about what's been going on?\n\n" +
					"Remember, seeking help is a sign of strength.",
				FollowUp: "I can see this has been hard for you. Have you considered talking to a mental health professional?\n\n" +
					"What would it be like to reach out to someone you trust?\n\n" +
					"Things can get better, even when it doesn't feel like it right now.",
			},
			LevelMedium: {
				First: "I understand you're feeling overwhelmed and stressed. These feelings are normal and manageable.\n\n" +
					"What's been causing you to feel this way? I'm here to listen.\n\n" +
					"Have you tried any coping strategies that worked before?",
				FollowUp: "I can see this has been affecting you. Have you considered talking to a counselor?\n\n" +
					"What would help you feel more grounded right now?\n\n" +
					"Remember, it's okay to ask for help.",
			},
			LevelLow: {
				First: "I'm sorry you're not feeling your best right now. It's completely normal to have days or periods where we feel down or struggle with our emotions.\n\n" +
					"Thank you for reaching out and sharing how you're feeling. That takes courage, and I'm here to listen and support you.\n\n" +
					"What's been going on that's been affecting how you feel? Sometimes just talking about what's on our minds can help us process our emotions better.\n\n" +
					"Is there anything specific that usually helps you feel better when you're having a tough time? Everyone has different things that work for them.",
				FollowUp: "I appreciate you continuing to share with me. It sounds like you've been going through a challenging time, and I want you to know that it's okay to not be okay sometimes.\n\n" +
					"How have you been coping with these feelings? Sometimes it helps to recognize the small ways we're already taking care of ourselves.\n\n" +
					"What would feel supportive to you right now? I'm here to listen, and I want to help in whatever way would be most helpful for you.\n\n" +
					"Remember, healing and feeling better often happens gradually, and it's okay to take things one day at a time.",
			},
		},
		ElaborationOrder: []Theme{ThemeWork, ThemeRelationship, ThemeSleep, ThemeLoneliness, ThemeFuture},
		Elaborations: map[Theme]string{
			ThemeWork:         "Work stress can be overwhelming. What specific aspect is most challenging?",
			ThemeRelationship: "Relationship issues can be really difficult. Would you like to talk more about this?",
			ThemeSleep:        "Sleep issues often affect our mental health. How long has this been going on?",
			ThemeLoneliness:   "Feeling lonely can be really hard. What would help you feel more connected?",
			ThemeFuture:       "It sounds like you're struggling with hope for the future. What would make a difference?",
		},
		LevelFollowUps: map[Level][]string{
			LevelCritical: {"Do you have someone you can call right now?", "Are you currently in a safe place?"},
			LevelHigh:     {"Have you talked to anyone about these feelings?", "How long have you been feeling this way?"},
			LevelMedium:   {"Have you tried any coping strategies?", "What's been causing you to feel this way?"},
			LevelLow:      {"How can I best support you right now?", "What's been on your mind lately?"},
		},
		ThemeFollowUps: map[Theme][]string{
			ThemeWork:         {"What's the most stressful part of your work situation?", "Have you talked to anyone at work about how you're feeling?"},
			ThemeRelationship: {"What would help improve your relationship situation?", "Have you tried talking to the person you're having issues with?"},
			ThemeSleep:        {"What's your sleep routine like?", "Have you tried any relaxation techniques before bed?"},
			ThemeLoneliness:   {"What activities usually help you feel less alone?", "Is there someone you could reach out to right now?"},
			ThemeFuture:       {"What would make you feel more hopeful about the future?", "What's one small thing you could do today to help yourself?"},
			ThemeFinancial:    {"What's the most pressing financial concern right now?", "Have you looked into any financial assistance programs?"},
			ThemeHealth:       {"How long have you been dealing with these health issues?", "Have you talked to a doctor about how this affects your mental health?"},
		},
		Suggestions: map[Level][]string{
			LevelLow: {
				"Practice deep breathing exercises",
				"Take a walk outside in nature",
				"Talk to a friend or family member",
				"Write down your thoughts and feelings",
				"Try some gentle stretching or yoga",
				"Listen to calming music",
				"Do something you usually enjoy",
			},
			LevelMedium: {
				"Consider talking to a mental health professional",
				"Practice mindfulness or meditation",
				"Establish a daily routine",
				"Limit caffeine and alcohol",
				"Get adequate sleep",
				"Exercise regularly",
				"Connect with supportive people",
			},
			LevelHigh: {
				"Please call a crisis hotline (988)",
				"Contact a mental health professional immediately",
				"Reach out to a trusted friend or family member",
				"Consider going to an emergency room if needed",
				"Remove any means of self-harm from your environment",
				"Stay with someone you trust",
				"Focus on getting through the next hour",
			},
			LevelCritical: {
				"Call 988 immediately - National Suicide Prevention Lifeline",
				"Go to the nearest emergency room",
				"Call 911 if you are in immediate danger",
				"Text HOME to 741741 for Crisis Text Line",
				"Stay with someone you trust",
				"Remove any dangerous items from your environment",
				"Remember that this feeling is temporary",
			},
		},
		EmergencyContacts: []string{
			"988 - National Suicide Prevention Lifeline (24/7)",
			"741741 - Crisis Text Line (Text HOME)",
			"911 - Emergency Services",
			"800-273-8255 - National Suicide Prevention Lifeline (Alternative)",
		},
	}
}
