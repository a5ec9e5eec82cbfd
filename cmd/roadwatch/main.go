// Package main implements the roadwatch CLI for working with the incident feed.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fyrsmithlabs/roadwatch/internal/actions"
	"github.com/fyrsmithlabs/roadwatch/internal/config"
	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/forms"
	"github.com/fyrsmithlabs/roadwatch/internal/logging"
	"github.com/fyrsmithlabs/roadwatch/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// configPath overrides the default config file location
	configPath string
	// outputFormat is "table" or "json"
	outputFormat string
	// assumeYes answers yes to every confirmation prompt
	assumeYes bool
	// verbose enables debug logging on stderr
	verbose bool
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roadwatch",
	Short: "CLI for the road incident feed",
	Long: `roadwatch is a command-line client for the road incident reporting API.
It lists and reports incidents, moderates reports and accounts, and runs a
live terminal dashboard.

The API location and polling intervals come from ~/.config/roadwatch/config.yaml
or ROADWATCH_* environment variables.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "table", "json":
			return nil
		}
		return fmt.Errorf("invalid --output %q (expected table or json)", outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/roadwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// app is the per-command set of wired components.
type app struct {
	reg    services.Registry
	logger *logging.Logger
	out    io.Writer
}

// openApp loads config and wires the registry for one command run.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := logging.FromSettings(cfg.Logging)
	logCfg.Format = "console"
	logCfg.Caller = false
	logCfg.Output.Writer = cmd.ErrOrStderr()
	logCfg.Level = zapcore.WarnLevel
	if verbose {
		logCfg.Level = zapcore.DebugLevel
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	confirmer := actions.AlwaysConfirm
	if !assumeYes {
		confirmer = promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	reg, err := services.New(services.Options{
		Config:    cfg,
		Logger:    logger.Underlying(),
		Confirmer: confirmer,
	})
	if err != nil {
		return nil, err
	}
	if err := reg.Session().Init(cmd.Context()); err != nil {
		logger.Debug(cmd.Context(), "session init failed", zap.Error(err))
	}
	return &app{reg: reg, logger: logger, out: cmd.OutOrStdout()}, nil
}

// Close releases the registry and flushes logs.
func (a *app) Close() {
	_ = a.reg.Close()
	_ = a.logger.Sync()
}

// requireLogin fails unless a user is signed in.
func (a *app) requireLogin() error {
	if !a.reg.Session().Authenticated() {
		return errors.New("not logged in (run 'roadwatch login')")
	}
	return nil
}

// loadIncidents fetches the incident list into the store.
func (a *app) loadIncidents(ctx context.Context) error {
	incidents, err := a.reg.Client().ListIncidents(ctx)
	if err != nil {
		return fmt.Errorf("fetching incidents: %s", forms.ActionMessage(err))
	}
	a.reg.Store().ReconcileIncidents(incidents)
	return nil
}

// loadComments fetches one thread into the store. The incident must be
// loaded first.
func (a *app) loadComments(ctx context.Context, id feed.ID) error {
	if !a.reg.Store().Expand(id) {
		return fmt.Errorf("incident %s not found", id)
	}
	comments, err := a.reg.Client().ListComments(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching comments: %s", forms.ActionMessage(err))
	}
	a.reg.Store().ReconcileComments(id, comments)
	return nil
}

// loadUsers fetches the admin user list into the store.
func (a *app) loadUsers(ctx context.Context) error {
	users, err := a.reg.Client().ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetching users: %s", forms.ActionMessage(err))
	}
	a.reg.Store().ReconcileUsers(users)
	return nil
}

// actionError turns an action failure into the message shown to the user.
func actionError(action string, err error) error {
	switch {
	case errors.Is(err, actions.ErrNotConfirmed):
		return fmt.Errorf("%s cancelled", action)
	case errors.Is(err, actions.ErrNotPermitted):
		return fmt.Errorf("%s: you don't have permission to perform this action", action)
	case errors.Is(err, actions.ErrNotFound), errors.Is(err, actions.ErrInvalidTransition),
		errors.Is(err, actions.ErrAlreadyVoted), errors.Is(err, actions.ErrInFlight):
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %s", action, forms.ActionMessage(err))
}

// promptConfirmer asks on out and reads a y/N answer from in.
func promptConfirmer(in io.Reader, out io.Writer) actions.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, prompt string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// prompter reads answers to interactive prompts.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

// ask prints prompt and reads one trimmed line.
func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// fill asks for *v when it is empty.
func (p *prompter) fill(v *string, prompt string) error {
	if *v != "" {
		return nil
	}
	answer, err := p.ask(prompt)
	if err != nil {
		return err
	}
	*v = answer
	return nil
}

// jsonOutput reports whether --output json is active.
func jsonOutput() bool {
	return outputFormat == "json"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a tabwriter for aligned columns.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
