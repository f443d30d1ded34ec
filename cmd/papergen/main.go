package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/papergen/internal/handler"
	appI18n "github.com/pavelanni/papergen/internal/i18n"
	"github.com/pavelanni/papergen/internal/model"
	"github.com/pavelanni/papergen/internal/paper"
	"github.com/pavelanni/papergen/internal/processing"
	"github.com/pavelanni/papergen/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error loading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "papergen",
		Short: "CIE/SEE question paper generator",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd(), validateCmd(), importBankCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `papergen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addGenerationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("cie-tolerance", 2, "Allowed marks difference when matching CIE questions")
	f.Int("see-tolerance", 3, "Allowed marks difference when matching SEE questions")
	f.Bool("deterministic-fallback", true, "Pick fallback phrasings deterministically from the slot")
	f.Bool("unique-candidates", false, "Use each bank question at most once per paper")
	f.StringSlice("default-topics", nil, "Topics used for generated questions without a topic (repeatable)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "papergen.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Default message language (en, hi)")
	f.String("processing-url", "", "Base URL of the document-processing webhook")
	f.String("processing-token", "", "Bearer token for the processing webhook")
	f.Duration("processing-timeout", 30*time.Second, "Timeout for processing webhook calls")
	f.Duration("poll-interval", 15*time.Second, "Interval for polling active processing jobs (0 disables)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins for the educator UI (repeatable)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set PAPERGEN_ADMIN_PASSWORD)")
	addGenerationFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a question paper from a configuration file without the server",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("config", "c", "", "Exam configuration JSON file (required)")
	f.StringP("bank", "b", "", "Processed question bank JSON file (optional)")
	f.String("course", "", "Course line for the paper header (defaults to course_code)")
	f.String("date", "", "Date line for the paper header (defaults to today)")
	f.Bool("json", false, "Write questions, text and stats as JSON instead of the rendered paper")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addGenerationFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an exam configuration file",
		RunE:  runValidate,
	}
	cmd.Flags().StringP("config", "c", "", "Exam configuration JSON file (required)")
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func importBankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-bank [files...]",
		Short: "Import processed question bank files as new bank versions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportBank,
	}
	f := cmd.Flags()
	f.String("db", "papergen.db", "SQLite database path")
	f.String("user", "admin", "Educator who owns the course")
	f.String("course", "", "Course code (required)")
	f.String("name", "", "Course name when the course is created")
	f.String("semester", "", "Semester when the course is created")
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export generated papers as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "papergen.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
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

	v.SetEnvPrefix("PAPERGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("papergen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/papergen")
	v.AddConfigPath("/etc/papergen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func generationConfig(v *viper.Viper) model.GenerationConfig {
	return model.GenerationConfig{
		CIETolerance:          v.GetInt("cie-tolerance"),
		SEETolerance:          v.GetInt("see-tolerance"),
		DeterministicFallback: v.GetBool("deterministic-fallback"),
		UniqueCandidates:      v.GetBool("unique-candidates"),
		DefaultTopics:         v.GetStringSlice("default-topics"),
		SecureCookies:         v.GetBool("secure-cookies"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if version, err := db.SchemaVersion(); err != nil {
		slog.Warn("failed to read schema version", "error", err)
	} else {
		slog.Info("database ready", "path", v.GetString("db"), "schema_version", version)
	}

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client := processing.New(
		v.GetString("processing-url"),
		v.GetString("processing-token"),
		v.GetDuration("processing-timeout"),
	)
	if !client.Configured() {
		slog.Warn("processing-url not set; question banks can only be uploaded or imported")
	}
	proc := processing.NewService(client, db, v.GetDuration("poll-interval"))

	genCfg := generationConfig(v)
	h := handler.New(db, proc, genCfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if origins := v.GetStringSlice("cors-origins"); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go proc.Run(ctx)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"processing_url", v.GetString("processing-url"),
		"poll_interval", v.GetDuration("poll-interval"),
		"cie_tolerance", genCfg.CIETolerance,
		"see_tolerance", genCfg.SEETolerance,
		"deterministic_fallback", genCfg.DeterministicFallback,
		"unique_candidates", genCfg.UniqueCandidates,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// readConfigFile loads an exam configuration from JSON.
func readConfigFile(path string) (model.ExamConfiguration, error) {
	var cfg model.ExamConfiguration
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	examType, ok := model.ParseExamType(string(cfg.ExamType))
	if !ok {
		return cfg, fmt.Errorf("%s: %w: %q", path, paper.ErrUnknownExamType, cfg.ExamType)
	}
	cfg.ExamType = examType
	return cfg, nil
}

func readBankFile(path string) (model.CandidatePool, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CandidatePool{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	pool, err := processing.DecodePool(bytes.NewReader(data))
	if err != nil {
		return model.CandidatePool{}, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return pool, data, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := readConfigFile(v.GetString("config"))
	if err != nil {
		return err
	}
	var pool model.CandidatePool
	if bankPath := v.GetString("bank"); bankPath != "" {
		if pool, _, err = readBankFile(bankPath); err != nil {
			return err
		}
		slog.Info("loaded question bank", "path", bankPath, "questions", len(pool.Questions))
	}

	header := paper.RenderHeader{
		Course:   v.GetString("course"),
		Semester: cfg.Semester,
		Date:     v.GetString("date"),
	}
	if header.Course == "" {
		header.Course = cfg.CourseCode
	}
	if header.Date == "" {
		header.Date = time.Now().Format("02-01-2006")
	}

	assembler := paper.NewAssembler(paper.OptionsFrom(generationConfig(v)))
	generated, err := assembler.Generate(cfg, pool, header)
	if err != nil {
		return fmt.Errorf("generate paper: %w", err)
	}
	slog.Info("generated paper", "exam_type", cfg.ExamType,
		"from_bank", generated.Stats.FromBank, "generated", generated.Stats.Generated)

	var data []byte
	if v.GetBool("json") {
		if data, err = json.MarshalIndent(generated, "", "  "); err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(generated.RenderedText)
	}
	return writeOutput(v.GetString("output"), data)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := readConfigFile(v.GetString("config"))
	if err != nil {
		return err
	}
	if err := paper.Validate(cfg.ExamType, cfg.Slots); err != nil {
		var verr *paper.ValidationError
		if errors.As(err, &verr) {
			slog.Error("invalid configuration", "kind", verr.Kind, "group", verr.Group,
				"actual", verr.Actual, "expected", verr.Expected, "slots", verr.SlotIDs)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
	return nil
}

func runImportBank(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	username := v.GetString("user")
	user, err := db.GetUserByUsername(username)
	if err != nil {
		return fmt.Errorf("get user %s: %w", username, err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", username)
	}
	course, err := db.EnsureCourse(user.ID, v.GetString("course"), v.GetString("name"), v.GetString("semester"))
	if err != nil {
		return fmt.Errorf("ensure course: %w", err)
	}

	for _, path := range args {
		pool, data, err := readBankFile(path)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("course/%d/file/%s", course.ID, filepath.Base(path))
		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(key)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("bank file unchanged, skipping", "path", path)
			continue
		}

		bv, err := db.SaveBankVersion(course.ID, pool, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("store bank from %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(key, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported question bank", "path", path, "course", course.Code,
			"version", bv.Version, "questions", len(pool.Questions))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllPapers()
	if err != nil {
		return fmt.Errorf("export papers: %w", err)
	}

	export := model.PaperExport{
		ExportedAt: time.Now(),
		NumPapers:  len(results),
		Papers:     results,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	// Ensure trailing newline.
	return writeOutput(v.GetString("output"), append(data, '\n'))
}

func writeOutput(outPath string, data []byte) error {
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
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
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
		return fmt.Errorf("admin password is required: set --admin-password flag or PAPERGEN_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
