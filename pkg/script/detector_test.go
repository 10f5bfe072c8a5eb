package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := NewDetector("ar-OM")
	tests := []struct {
		name string
		text string
		want Script
	}{
		{name: "arabic", text: "أريد أن أموت", want: Arabic},
		{name: "latin", text: "I feel anxious today", want: Latin},
		{name: "code switched", text: "I'm stressed about work اليوم", want: Mixed},
		{name: "minority below threshold", text: "أنا متضايق جداً من الشغل ومن الدوام كله ok", want: Arabic},
		{name: "too short uses primary", text: "ok", want: Arabic},
		{name: "digits and punctuation only", text: "123 !!", want: Arabic},
		{name: "empty", text: "", want: Arabic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestDetectDefaultFollowsPrimaryLanguage(t *testing.T) {
	assert.Equal(t, Latin, NewDetector("en-US").Detect("hi"))
	assert.Equal(t, Arabic, NewDetector("ar-SA").Detect("hi"))
}

func TestPresent(t *testing.T) {
	assert.Equal(t, []Script{Arabic, Latin}, Present("kill myself والله"))
	assert.Equal(t, []Script{Latin}, Present("hello"))
	assert.Empty(t, Present("123"))
}
