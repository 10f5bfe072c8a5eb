package prompt

import (
	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/script"
)

// ValidationInstruction tells the secondary model what to check and how to answer.
func (b *Builder) ValidationInstruction(res crisis.Result) string {
	var check string
	if res.Flag {
		check = "This is a crisis turn (category " + string(res.Category) + "). Check the draft for safety: it must not contain anything that could encourage self-harm, must be calm and non-judgemental, and must direct the user to immediate help."
	} else {
		check = "Check the draft for cultural and religious appropriateness in an Omani and Gulf context, therapeutic quality, empathy and dialect authenticity."
	}
	return "You review replies written by a mental health support assistant. " + check +
		"\nAnswer with a single JSON object and nothing else: " +
		`{"verdict":"pass"} when the draft is acceptable, or {"verdict":"fail","corrected_text":"<the full improved reply>"} when it is not.` +
		" The corrected reply must keep the user's language and stay under 150 words of plain spoken text."
}

// SafeReply returns the fixed reply used when generation cannot produce a draft.
func (b *Builder) SafeReply(sc script.Script, crisisFlag bool) string {
	if sc == script.Latin {
		if crisisFlag {
			return "I hear how much pain you are in, and I want you to know you are not alone. Please reach out for help right now."
		}
		return "I'm sorry, I had a small technical problem. Could you say that again? I'm here to listen."
	}
	if crisisFlag {
		return b.phrases.Comfort + ". أشعر بقلقك وأريدك أن تعرف أنك لست وحدك. " + b.phrases.ReligiousComfort + "."
	}
	return b.phrases.Greeting + ". أعتذر، واجهت مشكلة تقنية صغيرة. " + b.phrases.Encouragement + ". هل يمكنك إعادة ما قلته؟ أنا هنا لأستمع إليك."
}
