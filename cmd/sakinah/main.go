// Command sakinah runs the Omani Arabic voice support assistant.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harunnryd/sakinah/pkg/logging"
	"github.com/harunnryd/sakinah/pkg/runner"
	"github.com/harunnryd/sakinah/pkg/sakinah"
	"github.com/harunnryd/sakinah/pkg/turn"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sakinah",
		Short:         "Sakinah - Omani Arabic mental health voice assistant",
		Version:       runner.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML config; missing default falls back to mock vendors")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level from the config")

	root.AddCommand(newServeCmd(opts), newAskCmd(opts), newProvidersCmd(), newVersionCmd())
	return root
}

// load reads the env file and config, and installs the process logger.
func (o *rootOptions) load(cmd *cobra.Command) (sakinah.Config, *slog.Logger, error) {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return sakinah.Config{}, nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg sakinah.Config
	_, statErr := os.Stat(o.configPath)
	switch {
	case statErr == nil:
		loaded, err := sakinah.LoadConfig(o.configPath)
		if err != nil {
			return sakinah.Config{}, nil, err
		}
		cfg = loaded
	case errors.Is(statErr, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = sakinah.DefaultConfig()
	default:
		return sakinah.Config{}, nil, fmt.Errorf("config %s: %w", o.configPath, statErr)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger := logging.InitLogger(logging.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if statErr != nil {
		logger.Warn("config_not_found", "path", o.configPath, "fallback", "mock vendors")
	}
	return cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI, websocket and REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := sakinah.NewEngine(ctx, sakinah.EngineOptions{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			return engine.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

type askOutput struct {
	TurnID         string `json:"turn_id"`
	Transcript     string `json:"transcript"`
	Response       string `json:"response"`
	Language       string `json:"language"`
	Script         string `json:"script"`
	CrisisDetected bool   `json:"crisis_detected"`
	CrisisCategory string `json:"crisis_category,omitempty"`
	Verdict        string `json:"verdict"`
	LatencyMS      int64  `json:"latency_ms"`
	AudioBytes     int    `json:"audio_bytes"`
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		audioIn  string
		audioOut string
		asJSON   bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Run a single turn and print the reply",
		Example: `  sakinah ask "حاس بضيق اليوم"
  sakinah ask --audio question.webm --audio-out reply.mp3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && audioIn == "" {
				return errors.New("ask needs text or --audio")
			}
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			engine, err := sakinah.NewEngine(ctx, sakinah.EngineOptions{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer engine.Close()

			var t *turn.Turn
			if audioIn != "" {
				audio, readErr := os.ReadFile(audioIn)
				if readErr != nil {
					return readErr
				}
				t, err = engine.AskAudio(ctx, audio)
			} else {
				t, err = engine.Ask(ctx, text)
			}
			if err != nil {
				return err
			}

			if audioOut != "" && t.HasAudio() {
				if err := os.WriteFile(audioOut, t.Audio, 0o644); err != nil {
					return err
				}
			}
			return printTurn(cmd, t, asJSON)
		},
	}
	cmd.Flags().StringVar(&audioIn, "audio", "", "audio file to transcribe instead of text")
	cmd.Flags().StringVar(&audioOut, "audio-out", "", "write the synthesized reply to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the turn as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall turn timeout")
	return cmd
}

func printTurn(cmd *cobra.Command, t *turn.Turn, asJSON bool) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		if t.Crisis.Flag {
			fmt.Fprintf(out, "[crisis: %s]\n", t.Crisis.Category)
		}
		fmt.Fprintln(out, t.FinalText)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(askOutput{
		TurnID:         t.ID,
		Transcript:     t.RawText,
		Response:       t.FinalText,
		Language:       t.Language,
		Script:         string(t.Script),
		CrisisDetected: t.Crisis.Flag,
		CrisisCategory: string(t.Crisis.Category),
		Verdict:        string(t.Verdict),
		LatencyMS:      t.Latency.Total.Milliseconds(),
		AudioBytes:     len(t.Audio),
	})
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the registered STT, TTS and LLM providers",
		Run: func(cmd *cobra.Command, _ []string) {
			r := sakinah.DefaultProviders()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stt: %s\n", strings.Join(r.STTNames(), ", "))
			fmt.Fprintf(out, "tts: %s\n", strings.Join(r.TTSNames(), ", "))
			fmt.Fprintf(out, "llm: %s\n", strings.Join(r.LLMNames(), ", "))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sakinah", runner.Version)
		},
	}
}
