package prompt

// Profile is the fixed cultural-context configuration of the assistant.
type Profile struct {
	Persona             string
	CulturalContext     string
	TherapeuticApproach string
	Tone                string
	PrimaryLanguage     string
	FallbackLanguage    string
	// MaxWords bounds reply length so it suits a spoken conversation.
	MaxWords int
}

// Phrases are culturally grounded expressions offered to the model as style hints.
type Phrases struct {
	Greeting         string
	Comfort          string
	Encouragement    string
	ReligiousComfort string
}

// OmaniPhrases is the default phrase set.
var OmaniPhrases = Phrases{
	Greeting:         "السلام عليكم، أهلاً وسهلاً بك",
	Comfort:          "الله يعطيك العافية، أنا هنا لأساعدك",
	Encouragement:    "إن شاء الله خير، كلها تعدي",
	ReligiousComfort: "الله معك، وهذا ابتلاء وراه خير",
}

// DefaultProfile mirrors the shipped configuration defaults.
func DefaultProfile() Profile {
	return Profile{
		Persona:             "مساعد نفسي متخصص في الثقافة العمانية والخليجية",
		CulturalContext:     "gulf_arab",
		TherapeuticApproach: "cbt_islamic",
		Tone:                "warm",
		PrimaryLanguage:     "ar-OM",
		FallbackLanguage:    "ar-SA",
		MaxWords:            150,
	}
}

func (p Profile) withDefaults() Profile {
	def := DefaultProfile()
	if p.Persona == "" {
		p.Persona = def.Persona
	}
	if p.CulturalContext == "" {
		p.CulturalContext = def.CulturalContext
	}
	if p.TherapeuticApproach == "" {
		p.TherapeuticApproach = def.TherapeuticApproach
	}
	if p.Tone == "" {
		p.Tone = def.Tone
	}
	if p.PrimaryLanguage == "" {
		p.PrimaryLanguage = def.PrimaryLanguage
	}
	if p.FallbackLanguage == "" {
		p.FallbackLanguage = def.FallbackLanguage
	}
	if p.MaxWords <= 0 {
		p.MaxWords = def.MaxWords
	}
	return p
}

func approachGuidance(approach string) string {
	switch approach {
	case "cbt_islamic":
		return "Use cognitive behavioural techniques that are compatible with Islamic values; mention dua or dhikr only when it fits naturally."
	case "cbt":
		return "Use cognitive behavioural techniques: reflect feelings, gently question unhelpful thoughts, suggest one small next step."
	case "person_centered":
		return "Stay person-centred: listen, reflect, validate, and let the user lead."
	default:
		return "Offer supportive counselling grounded in " + approach + "."
	}
}

func contextGuidance(cultural string) string {
	switch cultural {
	case "gulf_arab":
		return "Respect Omani and Gulf family and community structures and Islamic sensitivities."
	default:
		return "Respect the user's cultural context (" + cultural + ")."
	}
}
