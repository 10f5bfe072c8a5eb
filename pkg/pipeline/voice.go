package pipeline

import (
	"strings"

	"github.com/harunnryd/sakinah/pkg/adapters/tts"
	"github.com/harunnryd/sakinah/pkg/script"
)

// Voice picks the speaker for a reply. English replies use the English voices
// when configured; crisis replies slow down and switch to the crisis style.
func (v VoiceConfig) Voice(gender string, sc script.Script, crisis bool) tts.Voice {
	gender = strings.ToLower(strings.TrimSpace(gender))
	if gender != "male" && gender != "female" {
		gender = v.Default
	}
	out := tts.Voice{Gender: gender, Language: "ar-OM", Rate: v.Rate}
	if gender == "male" {
		out.ID = v.Male
	} else {
		out.ID = v.Female
	}
	if sc == script.Latin {
		english := v.EnglishFemale
		if gender == "male" {
			english = v.EnglishMale
		}
		if english != "" {
			out.ID = english
			out.Language = "en-US"
		}
	}
	if crisis {
		out.Style = v.CrisisStyle
		out.Rate = v.CrisisRate
	}
	return out
}
