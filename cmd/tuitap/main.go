// Package main provides the CLI entrypoint for tuitap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuitap/internal/config"
	"github.com/verte-zerg/tuitap/internal/model"
	"github.com/verte-zerg/tuitap/internal/session"
	"github.com/verte-zerg/tuitap/internal/share"
	"github.com/verte-zerg/tuitap/internal/store"
	"github.com/verte-zerg/tuitap/internal/tui"
)

const defaultDuration = 10.0

// reservedKeys are bound to controls and can never register taps.
const reservedKeys = "123456ryq"

var (
	testDuration float64
	testTapKeys  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuitap",
		Short:         "TUI tap speed test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTestCmd,
	}

	rootCmd.Flags().Float64Var(&testDuration, "duration", defaultDuration, "test duration in seconds")
	rootCmd.Flags().StringVar(&testTapKeys, "tap-keys", "", "extra keys that register a tap (space and mouse click always do)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newBestCmd())

	return rootCmd
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFloatConfig(cmd, "duration", &testDuration, fileCfg.Test.Duration)
	applyStringConfig(cmd, "tap-keys", &testTapKeys, fileCfg.Test.TapKeys)

	cfg := model.Config{DurationSeconds: testDuration, TapKeys: testTapKeys}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	// The widget stays fully usable when persistence is unavailable; only
	// best-score tracking is lost.
	var scores session.ScoreStore
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logErrf("best-score persistence disabled: %v\n", err)
	} else {
		scores = st
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
	}

	clock := session.RealClock()
	duration := time.Duration(cfg.DurationSeconds * float64(time.Second))
	sess := session.New(duration, clock, scores)
	if err := sess.LoadBest(context.Background()); err != nil {
		logErrf("failed to load best score: %v\n", err)
	}

	m := tui.NewModel(cfg, sess, clock)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	printRecap(sess.Snapshot(clock.Now()))
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newBestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "best",
		Short: "Show the recorded best rate",
		Args:  cobra.NoArgs,
		RunE:  runBestCmd,
	}
}

func runBestCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	rec, ok, err := st.GetRecord(context.Background(), session.BestKey)
	if err != nil {
		return fmt.Errorf("failed to read best score: %w", err)
	}
	if !ok {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "No best score recorded yet."); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	line := fmt.Sprintf("Best: %.2f CPS (updated %s)", rec.Rate, rec.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func printRecap(snap session.Snapshot) {
	line := recapLine(snap, terminalWidth())
	if line == "" {
		return
	}
	fmt.Println(line)
}

func recapLine(snap session.Snapshot, width int) string {
	parts := []string{}
	if snap.HasFinal {
		summary := share.Summary{Clicks: snap.Clicks, Duration: snap.Duration, Rate: snap.FinalRate}
		parts = append(parts, "Last: "+summary.String())
	}
	if snap.HasBest {
		parts = append(parts, fmt.Sprintf("Best: %.2f CPS", snap.BestRate))
	}
	return runewidth.Truncate(strings.Join(parts, "   "), width, "")
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuitap configuration
# Uncomment a value to enable it. CLI flags override config values.

[test]
# duration = %g          # Test duration in seconds (presets: 5, 10, 15, 30, 60, 100)
# tap-keys = "jf"        # Extra keys that register a tap (space and mouse click always do)
`,
		defaultDuration,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.DurationSeconds <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	for _, r := range cfg.TapKeys {
		if strings.ContainsRune(reservedKeys, r) {
			return fmt.Errorf("--tap-keys must not include reserved key %q", r)
		}
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
