package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/l1jgo/resman/internal/config"
	"github.com/l1jgo/resman/internal/data"
	"github.com/l1jgo/resman/internal/persist"
	"github.com/l1jgo/resman/internal/resman"
	"github.com/l1jgo/resman/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Display helpers ────────────────────────────────────────────────

func printBanner(baseDir string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          L1JGO resman  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          資源快取 · 預載與檢視            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m資源目錄:\033[0m %s\n\n", baseDir)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Printf("  \033[33m!\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Startup ────────────────────────────────────────────────────────

func configPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if p := os.Getenv("RESMAN_CONFIG"); p != "" {
		return p
	}
	return "config/resman.toml"
}

func run(args []string) error {
	// 1. Load config
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Resources.BaseDir)

	m := resman.New(cfg.Resources.BaseDir,
		resman.WithLogger(log),
		resman.WithInitialCapacity(cfg.Resources.InitialCapacity),
	)
	defer resman.Destroy(&m)

	// 3. Optional PostgreSQL store
	if cfg.Database.Enabled {
		printSection("資料庫")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if _, err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
		fmt.Println()

		repo := persist.NewBlobRepo(db)
		if err := m.RegisterFactory("dbblob", persist.BlobFactory(repo, db.QueryTimeout())); err != nil {
			return err
		}
	}

	// 4. Register file factories
	printSection("資源類型")
	if err := registerFactories(m, cfg.Resources, log); err != nil {
		return err
	}
	for _, t := range m.Types() {
		printOK(t)
	}
	fmt.Println()

	// 5. Preload manifest
	printSection("預載資源")
	loaded, failed := preload(m, cfg.Preload, log)
	printStat("成功", loaded)
	printStat("失敗", failed)
	fmt.Println()

	printSection("快取統計")
	printStats(m)
	fmt.Println()

	if cfg.CLI.UnloadAfter {
		printSection("卸載")
		printStat("已釋放", unloadAll(m))
		fmt.Println()
	}

	if err := resman.Destroy(&m); err != nil {
		return fmt.Errorf("close manager: %w", err)
	}
	printReady("完成")
	return nil
}

func registerFactories(m *resman.Manager, cfg config.ResourcesConfig, log *zap.Logger) error {
	root := m.BaseDir()
	text, err := data.TextFactory(root, cfg.TextCharset)
	if err != nil {
		return fmt.Errorf("text factory: %w", err)
	}

	factories := []struct {
		name    string
		factory resman.Factory
	}{
		{"blob", data.BlobFactory(root)},
		{"text", text},
		{"document", data.DocumentFactory(root)},
		{"script", scripting.ScriptFactory(root, log)},
		{"module", scripting.ModuleFactory(root, log)},
	}
	for _, f := range factories {
		if err := m.RegisterFactory(f.name, f.factory); err != nil {
			return fmt.Errorf("register %s: %w", f.name, err)
		}
	}
	return nil
}

// preload loads every manifest entry and reports how many succeeded.
func preload(m *resman.Manager, entries []config.PreloadEntry, log *zap.Logger) (loaded, failed int) {
	for _, e := range entries {
		if _, err := m.Load(e.Type, e.Path); err != nil {
			failed++
			printWarn(fmt.Sprintf("%s %s", e.Type, e.Path))
			log.Warn("preload failed",
				zap.String("type", e.Type),
				zap.String("path", e.Path),
				zap.Error(err),
			)
			continue
		}
		loaded++
	}
	return loaded, failed
}

func printStats(m *resman.Manager) {
	for _, t := range m.Types() {
		st, ok := m.Stats(t)
		if !ok {
			continue
		}
		printStat(t, st.Cached)
	}
}

// unloadAll removes every cached resource and returns how many were released.
func unloadAll(m *resman.Manager) int {
	n := 0
	for _, t := range m.Types() {
		for _, p := range m.Paths(t) {
			res, ok := m.Get(t, p)
			if !ok {
				continue
			}
			if m.Unload(t, &res) {
				n++
			}
		}
	}
	return n
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
