package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"github.com/mbender/sprechtrainer/internal/exam"
	"github.com/mbender/sprechtrainer/internal/handler"
	appI18n "github.com/mbender/sprechtrainer/internal/i18n"
	"github.com/mbender/sprechtrainer/internal/image"
	"github.com/mbender/sprechtrainer/internal/llm"
	"github.com/mbender/sprechtrainer/internal/model"
	"github.com/mbender/sprechtrainer/internal/speech"
	"github.com/mbender/sprechtrainer/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sprechtrainer",
		Short: "DTZ exam practice server powered by speech and LLM providers",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sprechtrainer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP practice server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "sprechtrainer.db", "SQLite database path")
	f.String("openai-url", "", "OpenAI-compatible API base URL (empty = official endpoint)")
	f.String("openai-key", "", "API key for the OpenAI-compatible provider")
	f.String("openai-model", "gpt-4o-mini", "Chat model for dialogue and grading")
	f.String("tts-voice", "alloy", "Hosted TTS voice")
	f.String("tts-command", "", "Local TTS fallback command (e.g. espeak-ng; empty = no fallback)")
	f.String("image-url", "", "Image search API base URL (empty = api.unsplash.com)")
	f.String("image-key", "", "Image search access key (empty = static image set only)")
	f.StringP("lang", "l", "de", "UI language (de, en, ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set SPRECHTRAINER_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "sprechtrainer.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SPRECHTRAINER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sprechtrainer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sprechtrainer")
	v.AddConfigPath("/etc/sprechtrainer")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// localVoices is the voice table for the espeak-ng style fallback
// engine.
var localVoices = []speech.LocalVoice{
	{Name: "de", Lang: language.German},
	{Name: "en", Lang: language.English},
	{Name: "ru", Lang: language.Russian},
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	apiKey := v.GetString("openai-key")
	if apiKey == "" {
		return fmt.Errorf("OpenAI API key is required: set --openai-key flag or SPRECHTRAINER_OPENAI_KEY env var")
	}

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if removed, err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean expired sessions", "error", err)
	} else if removed > 0 {
		slog.Info("cleaned expired login sessions", "count", removed)
	}

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create providers.
	baseURL := v.GetString("openai-url")
	llmClient := llm.New(baseURL, apiKey, v.GetString("openai-model"))
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", baseURL, "model", v.GetString("openai-model"))

	var synth exam.Synthesizer = speech.NewOpenAISynthesizer(baseURL, apiKey, v.GetString("tts-voice"))
	if ttsCommand := v.GetString("tts-command"); ttsCommand != "" {
		fallback := speech.NewCommandSynthesizer(ttsCommand, localVoices, language.German)
		synth = speech.NewChain(synth, fallback)
	}

	deps := exam.Deps{
		Dialogue:    llmClient,
		Transcriber: speech.NewTranscriber(baseURL, apiKey),
		Synth:       synth,
		Images:      image.New(v.GetString("image-url"), v.GetString("image-key")),
		Results:     db,
	}

	h := handler.New(db, deps, handler.Config{
		SecureCookies: v.GetBool("secure-cookies"),
		Exam:          exam.DefaultConfig(),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("openai-model"),
		"openai_url", baseURL,
		"lang", lang,
		"image_search", v.GetString("image-key") != "",
		"tts_fallback", v.GetString("tts-command"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or SPRECHTRAINER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser("admin", "Administrator", string(hash), model.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
