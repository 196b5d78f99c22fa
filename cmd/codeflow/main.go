package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/codeflow-cli/codeflow/agent"
	"github.com/codeflow-cli/codeflow/agent/acp"
	"github.com/codeflow-cli/codeflow/agent/terminal"
	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/confirm"
	"github.com/codeflow-cli/codeflow/llm"
	"github.com/codeflow-cli/codeflow/logging"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/tools"
	"github.com/codeflow-cli/codeflow/workspace"
)

func main() {
	sessionFlag := flag.String("s", "", "Session name to create or use")
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	resumeFlag := flag.String("r", "", "Resume a session by name")
	toolVerbosityFlag := flag.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all'")
	acpFlag := flag.Bool("acp", false, "Serve the Agent Client Protocol over stdio")
	autoAcceptFlag := flag.Bool("auto-accept", false, "Accept every proposed change without prompting")
	maxStepsFlag := flag.Int("max-steps", 0, "Override the per-goal step budget")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}
	if *maxStepsFlag > 0 {
		cfg.MaxSteps = *maxStepsFlag
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %+v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var sess *session.Session
	sessionName := *sessionFlag

	if *resumeFlag != "" {
		sessionName = *resumeFlag
		sess, err = session.Load(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Resuming session: %s\n", sessionName)
		// Session flags win unless overridden on the command line.
		if *toolsetFlag == "" && sess.Toolset != "" {
			*toolsetFlag = sess.Toolset
		}
		if *toolVerbosityFlag == "" && sess.ToolVerbosity != "" {
			*toolVerbosityFlag = sess.ToolVerbosity
		}
	} else {
		if sessionName == "" {
			sessionName = defaultSessionName()
		}
		sess, err = session.New(sessionName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session '%s': %+v\n", sessionName, err)
			os.Exit(1)
		}
		fmt.Printf("Starting new session: %s\n", sessionName)
	}

	if *toolVerbosityFlag == "" {
		*toolVerbosityFlag = "none"
	}
	var verbosity terminal.Verbosity
	switch *toolVerbosityFlag {
	case "none":
		verbosity = terminal.VerbosityNone
	case "info":
		verbosity = terminal.VerbosityInfo
	case "all":
		verbosity = terminal.VerbosityAll
	default:
		fmt.Fprintf(os.Stderr, "Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.\n", *toolVerbosityFlag)
		os.Exit(1)
	}

	sess.Toolset = *toolsetFlag
	sess.ToolVerbosity = *toolVerbosityFlag
	sess.Acp = *acpFlag
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session '%s': %+v\n", sessionName, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(ctx, cfg.LLMClient, cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s client: %+v\n", cfg.LLMClient, err)
		os.Exit(1)
	}

	fs := workspace.NewOSFileSystem(&cfg.FilesystemAccess)
	index, err := workspace.NewIndex(".", &cfg.FilesystemAccess)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning workspace: %+v\n", err)
		os.Exit(1)
	}
	registry, mcpClients, err := tools.NewDefaultRegistry(cfg, fs, index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building tool registry: %+v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range mcpClients {
			if err := c.Stop(); err != nil {
				logger.Warn("stopping MCP server", zap.String("server", c.Name), zap.Error(err))
			}
		}
	}()

	log := changelog.NewLog(cfg.Handbook)

	if *acpFlag {
		factory := func(sess *session.Session, cb agent.Callbacks) (*agent.Orchestrator, error) {
			return agent.New(agent.Options{
				Config:   cfg,
				Session:  sess,
				Client:   client,
				Registry: registry,
				Gate:     &confirm.PolicyGate{Accept: true},
				Log:      log,
				FS:       fs,
				Index:    index,
				Logger:   logger,
				Toolset:  *toolsetFlag,

				Callbacks: cb,
			})
		}
		in := bufio.NewReader(os.Stdin)
		out := bufio.NewWriter(os.Stdout)
		if err := acp.Run(ctx, factory, in, out, logger); err != nil {
			fmt.Fprintf(os.Stderr, "ACP mode failed: %+v\n", err)
			os.Exit(1)
		}
		return
	}

	var gate confirm.Gate
	if *autoAcceptFlag {
		gate = &confirm.PolicyGate{Accept: true}
	} else {
		gate = confirm.NewTerminalGate(cfg.ConfirmTimeout())
	}

	term := terminal.New(log, index, verbosity)
	orch, err := agent.New(agent.Options{
		Config:    cfg,
		Session:   sess,
		Client:    client,
		Registry:  registry,
		Gate:      gate,
		Log:       log,
		FS:        fs,
		Index:     index,
		Logger:    logger,
		Toolset:   *toolsetFlag,
		Callbacks: term.Callbacks(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}

	initialPrompt := strings.Join(flag.Args(), " ")
	fmt.Println("Codeflow is ready. Type your goal, or /help for commands.")
	if err := term.Run(ctx, orch, initialPrompt); err != nil {
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "codeflow"
	}
	dirName := filepath.Base(wd)
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s_%s", dirName, timestamp)
}
