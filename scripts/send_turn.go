package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type inbound struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	AudioData string `json:"audio_data,omitempty"`
	Language  string `json:"language,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

// send_turn drives one websocket turn against a running server and prints
// every message it receives until the reply arrives.
func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws", "websocket URL")
	text := flag.String("text", "", "text to send")
	audioPath := flag.String("audio", "", "audio file to send instead of text")
	language := flag.String("language", "", "preferred language")
	voice := flag.String("voice", "", "female or male")
	audioOut := flag.String("audio_out", "", "write the reply audio here")
	timeout := flag.Duration("timeout", time.Minute, "")
	flag.Parse()
	if *text == "" && *audioPath == "" {
		fmt.Println("usage: send_turn -text=... | -audio=file.webm [-addr=ws://...]")
		os.Exit(1)
	}

	u, err := url.Parse(*addr)
	if err != nil {
		fmt.Println("addr error:", err)
		os.Exit(1)
	}
	q := u.Query()
	if *language != "" {
		q.Set("language", *language)
	}
	if *voice != "" {
		q.Set("voice", *voice)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	defer conn.Close()

	msg := inbound{Type: "text_input", Text: *text}
	if *audioPath != "" {
		raw, err := os.ReadFile(*audioPath)
		if err != nil {
			fmt.Println("audio error:", err)
			os.Exit(1)
		}
		msg = inbound{Type: "voice_input", AudioData: base64.StdEncoding.EncodeToString(raw)}
	}
	if err := conn.WriteJSON(msg); err != nil {
		fmt.Println("send error:", err)
		os.Exit(1)
	}

	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	for {
		var reply map[string]any
		if err := conn.ReadJSON(&reply); err != nil {
			fmt.Println("read error:", err)
			os.Exit(1)
		}
		kind, _ := reply["type"].(string)
		if audio, ok := reply["audio_data"].(string); ok && audio != "" {
			if *audioOut != "" {
				if raw, err := base64.StdEncoding.DecodeString(audio); err == nil {
					_ = os.WriteFile(*audioOut, raw, 0o644)
				}
			}
			reply["audio_data"] = fmt.Sprintf("<%d base64 chars>", len(audio))
		}
		line, _ := json.Marshal(reply)
		fmt.Println(string(line))
		switch kind {
		case "voice_response", "text_response", "no_speech", "error":
			return
		}
	}
}
