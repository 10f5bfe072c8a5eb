package postprocess

import "fmt"

// Contacts are the emergency numbers appended to crisis replies.
type Contacts struct {
	Police              string
	MentalHealthHotline string
	MinistryOfHealth    string
}

// EmergencyContacts are the Omani numbers used by default.
var EmergencyContacts = Contacts{
	Police:              "9999",
	MentalHealthHotline: "24673000",
	MinistryOfHealth:    "24602077",
}

// Numbers lists every configured number, for log redaction allow-lists.
func (c Contacts) Numbers() []string {
	out := make([]string, 0, 3)
	for _, n := range []string{c.Police, c.MentalHealthHotline, c.MinistryOfHealth} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (c Contacts) withDefaults() Contacts {
	if c.Police == "" {
		c.Police = EmergencyContacts.Police
	}
	if c.MentalHealthHotline == "" {
		c.MentalHealthHotline = EmergencyContacts.MentalHealthHotline
	}
	if c.MinistryOfHealth == "" {
		c.MinistryOfHealth = EmergencyContacts.MinistryOfHealth
	}
	return c
}

func renderBlock(c Contacts) string {
	return fmt.Sprintf(
		"أنت لست وحدك، والمساعدة متوفرة الآن. إذا كنت في خطر فاتصل بالطوارئ على %s، أو بخط الدعم النفسي على %s، أو بوزارة الصحة على %s. "+
			"You are not alone. If you are in danger call %s, or the mental health hotline on %s.",
		c.Police, c.MentalHealthHotline, c.MinistryOfHealth, c.Police, c.MentalHealthHotline)
}
