package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ollielabs/ollie/internal/agent"
	"github.com/ollielabs/ollie/internal/config"
	"github.com/ollielabs/ollie/internal/messages"
	"github.com/ollielabs/ollie/internal/modelclient"
	"github.com/ollielabs/ollie/internal/safety"
	"github.com/ollielabs/ollie/internal/store"
)

// Version is set at build time via -ldflags "-X github.com/ollielabs/ollie/cmd.Version=v1.0.0".
var Version = "dev"

var (
	modelFlag    string
	hostFlag     string
	sessionFlag  string
	continueFlag bool
	modeFlag     string
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "ollie",
	Short: "Ollie — a local coding agent backed by Ollama",
	Long:  "Ollie runs a Think-Act-Observe coding agent against a local Ollama model, with a safety gateway that gates file and shell access by autonomy level.",
	RunE:  runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", config.DefaultModel, "model id")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", config.DefaultHost, "model host (overridable by $OLLAMA_HOST)")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "resume a specific session id (exit 1 if not found)")
	rootCmd.PersistentFlags().BoolVar(&continueFlag, "continue", false, "resume the most recent session for this project")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "build", "starting mode: plan or build")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging (equivalent to OLLY_DEBUG=1)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(migrateCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}

// Execute runs the root cobra command; exit code 1 on any error, matching
// spec §6's "exit code 1 on missing session id" plus any other setup
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	debug := os.Getenv("OLLY_DEBUG")
	level := slog.LevelInfo
	if verboseFlag || debug == "1" || strings.EqualFold(debug, "true") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(&taggedWriter{w: os.Stderr, tag: "[agent]"}, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// taggedWriter prefixes every write with a fixed tag, matching spec §6's
// "[agent]-tagged stderr logging" requirement without pulling slog into
// formatting decisions it doesn't natively support.
type taggedWriter struct {
	w   io.Writer
	tag string
}

func (t *taggedWriter) Write(p []byte) (int, error) {
	if _, err := fmt.Fprint(t.w, t.tag+" "); err != nil {
		return 0, err
	}
	n, err := t.w.Write(p)
	return n, err
}

func dbPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "olly", "olly.db"), nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	log := newLogger()

	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	projectName := filepath.Base(projectRoot)

	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath, projectRoot)
	if err != nil {
		return err
	}

	// Precedence for model/host, highest first: explicit CLI flag,
	// $OLLAMA_HOST (host only), the persisted config file, built-in default.
	model := modelFlag
	if !cmd.Flags().Changed("model") && cfg.Model != "" {
		model = cfg.Model
	}
	host := hostFlag
	if !cmd.Flags().Changed("host") {
		switch {
		case os.Getenv("OLLAMA_HOST") != "":
			host = os.Getenv("OLLAMA_HOST")
		case cfg.Host != "":
			host = cfg.Host
		}
	}
	apiKey := os.Getenv("OLLAMA_API_KEY")

	mode := safety.ModeBuild
	if modeFlag == "plan" {
		mode = safety.ModePlan
	}

	path, err := dbPath()
	if err != nil {
		return err
	}
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer st.Close()

	sess, err := resolveSession(st, projectRoot, projectName, model, host, mode)
	if err != nil {
		return err
	}

	history, err := st.GetHistory(sess.ID)
	if err != nil {
		return fmt.Errorf("load session history: %w", err)
	}

	gw, err := safety.NewGateway(cfg.Safety, sess.ID, log)
	if err != nil {
		return fmt.Errorf("start safety gateway: %w", err)
	}

	client := modelclient.New(host, apiKey, log)
	loop := agent.New(client, st, gw, log, sess.ID, projectRoot)

	fmt.Printf("ollie: session %s (%s mode, model %s)\n", sess.ID, mode, model)

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := st.AddMessage(sess.ID, messages.Message{Role: messages.RoleUser, Content: line}); err != nil {
			log.Warn("failed to persist user message", "error", err)
		}

		result, runErr := loop.Run(ctx, agent.RunRequest{
			Model:       model,
			Host:        host,
			APIKey:      apiKey,
			UserMessage: line,
			History:     history,
			SessionID:   sess.ID,
			Mode:        mode,
			OnContentToken: func(token string) {
				fmt.Print(token)
			},
			Confirm: confirmOnTerminal,
			Blocked: func(tool, reason string) {
				fmt.Printf("\n[blocked] %s: %s\n", tool, reason)
			},
		})
		fmt.Println()

		if runErr != nil {
			fmt.Printf("[error] %s\n", runErr.Error())
			continue
		}

		if err := st.AddMessage(sess.ID, messages.Message{Role: messages.RoleAssistant, Content: result.FinalAnswer}); err != nil {
			log.Warn("failed to persist assistant message", "error", err)
		}
		history = append(history, messages.Message{Role: messages.RoleUser, Content: line})
		history = append(history, messages.Message{Role: messages.RoleAssistant, Content: result.FinalAnswer})
	}

	return nil
}

func resolveSession(st *store.Store, projectRoot, projectName, model, host string, mode safety.Mode) (*store.Session, error) {
	if sessionFlag != "" {
		sess, err := st.GetSession(sessionFlag)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found", sessionFlag)
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
	if continueFlag {
		sess, err := st.MostRecentForProject(projectRoot)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return st.GetOrCreate(uuid.NewString(), projectRoot, projectName, string(mode), model, host)
}

// confirmOnTerminal is the default synchronous confirmation callback: print
// the request and read a one-line answer from stdin.
func confirmOnTerminal(ctx context.Context, req *safety.ConfirmationRequest) safety.ConfirmationResponse {
	fmt.Printf("\n[confirm] %s\n", req.HumanDescription)
	if req.Preview != nil {
		switch req.Preview.Kind {
		case safety.PreviewCommand:
			fmt.Printf("  $ %s\n", req.Preview.Command)
		case safety.PreviewContent:
			fmt.Printf("  %s\n", req.Preview.Text)
		case safety.PreviewDiff:
			fmt.Printf("  %s: %d -> %d bytes\n", req.Preview.Path, len(req.Preview.Before), len(req.Preview.After))
		}
	}
	fmt.Print("allow once [y], allow always [a], deny [n], deny always [N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	switch answer {
	case "a", "A":
		return safety.ConfirmationResponse{Kind: safety.RespondAllowAlways, ForTool: req.Tool}
	case "N":
		return safety.ConfirmationResponse{Kind: safety.RespondDenyAlways, ForTool: req.Tool}
	case "n":
		return safety.ConfirmationResponse{Kind: safety.RespondDeny}
	default:
		return safety.ConfirmationResponse{Kind: safety.RespondAllow}
	}
}
