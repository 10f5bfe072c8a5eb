package prompt

import (
	"fmt"
	"strings"

	"github.com/harunnryd/sakinah/pkg/crisis"
	"github.com/harunnryd/sakinah/pkg/llm"
	"github.com/harunnryd/sakinah/pkg/script"
)

// Input is everything the builder needs for one turn.
type Input struct {
	Transcript string
	Script     script.Script
	Crisis     crisis.Result
	// History holds earlier exchanges of the live session, oldest first.
	History []llm.Message
}

// Payload is the instruction bundle for the primary generation call.
type Payload struct {
	Instructions string
	Transcript   string
	Context      []llm.Message
	Script       script.Script
	Crisis       crisis.Result
	shortened    bool
}

// Builder assembles prompts from a fixed profile. It performs no I/O.
type Builder struct {
	profile Profile
	phrases Phrases
}

func NewBuilder(profile Profile, phrases Phrases) *Builder {
	if phrases == (Phrases{}) {
		phrases = OmaniPhrases
	}
	return &Builder{profile: profile.withDefaults(), phrases: phrases}
}

func (b *Builder) Profile() Profile { return b.profile }

// Build selects the crisis template when the crisis flag is set and the
// script-specific supportive template otherwise.
func (b *Builder) Build(in Input) Payload {
	var instructions string
	if in.Crisis.Flag {
		instructions = b.crisisInstructions(in.Crisis.Category, in.Script)
	} else {
		instructions = b.supportiveInstructions(in.Script)
	}
	history := make([]llm.Message, len(in.History))
	copy(history, in.History)
	return Payload{
		Instructions: instructions,
		Transcript:   in.Transcript,
		Context:      history,
		Script:       in.Script,
		Crisis:       in.Crisis,
	}
}

// Request renders the payload as a provider-neutral completion request.
func (p Payload) Request(maxTokens int, temperature float64) llm.Request {
	msgs := make([]llm.Message, 0, len(p.Context)+1)
	msgs = append(msgs, p.Context...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: p.Transcript})
	return llm.Request{
		System:      p.Instructions,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// Shortened keeps only the essential instructions and drops the history.
// The orchestrator uses it for its single retry.
func (p Payload) Shortened() Payload {
	short := p
	short.Context = nil
	short.shortened = true
	short.Instructions = compactInstructions(p.Script, p.Crisis)
	return short
}

// IsShortened reports whether this payload is the compact retry form.
func (p Payload) IsShortened() bool { return p.shortened }

func (b *Builder) supportiveInstructions(sc script.Script) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "أنت %s. تتحدث باللهجة العمانية وتفهم السياق الثقافي والديني للمجتمع العماني.\n\n", b.profile.Persona)
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- " + contextGuidance(b.profile.CulturalContext) + "\n")
	sb.WriteString("- " + approachGuidance(b.profile.TherapeuticApproach) + "\n")
	fmt.Fprintf(&sb, "- Keep a %s, supportive tone. You offer emotional support, not a medical diagnosis; encourage professional help when needed.\n", b.profile.Tone)
	sb.WriteString("- " + scriptGuidance(sc, b.profile.PrimaryLanguage) + "\n")
	fmt.Fprintf(&sb, "- Keep the reply under %d words, in plain sentences without lists or markdown, because it will be spoken aloud.\n", b.profile.MaxWords)
	sb.WriteString("\nCulturally appropriate phrases you may use:\n")
	fmt.Fprintf(&sb, "- greeting: %s\n- encouragement: %s\n- comfort: %s\n- religious comfort: %s\n",
		b.phrases.Greeting, b.phrases.Encouragement, b.phrases.Comfort, b.phrases.ReligiousComfort)
	return sb.String()
}

func (b *Builder) crisisInstructions(cat crisis.Category, sc script.Script) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "أنت %s. The user may be in crisis (risk category: %s).\n\n", b.profile.Persona, cat)
	sb.WriteString("Safety rules, in priority order:\n")
	sb.WriteString("- Put the user's immediate safety first. Acknowledge their pain calmly and without judgement.\n")
	sb.WriteString("- Never describe methods, never agree that harming themselves is a solution, and avoid anything that could be read as encouraging self-harm or substance use.\n")
	sb.WriteString("- Gently ask whether they are safe right now and encourage them to contact emergency services (9999) or the mental health hotline (24673000), or someone they trust.\n")
	sb.WriteString("- Remind them they are not alone; " + b.phrases.Comfort + ".\n")
	sb.WriteString("- " + scriptGuidance(sc, b.profile.PrimaryLanguage) + "\n")
	fmt.Fprintf(&sb, "- Keep the reply under %d words, in plain spoken sentences without lists or markdown.\n", b.profile.MaxWords)
	return sb.String()
}

func compactInstructions(sc script.Script, res crisis.Result) string {
	if res.Flag {
		return "You are a supportive mental health assistant. The user may be in crisis. Respond calmly, prioritise safety, never encourage self-harm, and urge them to call 9999 or 24673000. " +
			scriptGuidance(sc, "ar-OM") + " Under 80 words."
	}
	return "You are a warm Omani mental health support assistant. Respond with empathy in two or three short spoken sentences. " +
		scriptGuidance(sc, "ar-OM")
}

func scriptGuidance(sc script.Script, primary string) string {
	switch sc {
	case script.Latin:
		return "The user wrote in English: reply in clear, simple English; a short Arabic courtesy phrase is welcome."
	case script.Mixed:
		return "The user mixes Arabic and English: mirror their code-switching naturally, keeping Omani Arabic as the base."
	default:
		return "Reply in authentic Omani Arabic dialect (" + primary + ")."
	}
}
