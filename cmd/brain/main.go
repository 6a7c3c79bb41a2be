// brain is a command-line client for the document question-answering
// backend. It streams answers to the terminal as they arrive and keeps a
// local store of past threads so conversations can be continued, reviewed
// and exported.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/AmitS1009/Constructure-AI/internal/render"
	"github.com/AmitS1009/Constructure-AI/pkg/client"
	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
	"github.com/AmitS1009/Constructure-AI/pkg/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		if errors.Is(err, core.ErrStreamCancelled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	cfg    Config
	logger *logrus.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, a *app, flagSet *pflag.FlagSet, args []string) error
	flags   func(flagSet *pflag.FlagSet)
}

var commands = []command{
	{
		name:    "ask",
		usage:   `ask [--thread N | --last] "question"`,
		summary: "ask a question and stream the answer",
		run:     runAsk,
		flags: func(fs *pflag.FlagSet) {
			fs.Int64("thread", 0, "continue the stored thread with this id")
			fs.Bool("last", false, "continue the most recent stored thread")
		},
	},
	{
		name:    "threads",
		usage:   "threads",
		summary: "list stored threads, newest first",
		run:     runThreads,
	},
	{
		name:    "show",
		usage:   "show N",
		summary: "print the messages of a stored thread",
		run:     runShow,
	},
	{
		name:    "delete",
		usage:   "delete N",
		summary: "delete a stored thread",
		run:     runDelete,
	},
	{
		name:    "export",
		usage:   "export N [--out file.html]",
		summary: "write a stored thread as an HTML page",
		run:     runExport,
		flags: func(fs *pflag.FlagSet) {
			fs.String("out", "", "output file (default: stdout)")
		},
	},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		printHelp(stderr)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		printHelp(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	var configPath, logLevel string
	flagSet := pflag.NewFlagSet("brain "+cmd.name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	if cmd.flags != nil {
		cmd.flags(flagSet)
	}
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  brain %s\n\nFlags:\n", cmd.usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if _, err := logrus.ParseLevel(logLevel); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = logLevel
	}

	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg.LogLevel, stderr),
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(ctx, a, flagSet, flagSet.Args())
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, `brain asks questions about your project documents.

Usage:
  brain <command> [flags]

Commands:
`)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.usage, cmd.summary)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, `
Every command accepts --config and --log-level. The config file is YAML
with the keys base_url, token, transport, timeout, store_path and
log_level; %s and %s override it.
`, envBaseURL, envToken)
}

func (a *app) openStore() (*state.BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.StorePath), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return state.OpenBoltStore(a.cfg.StorePath)
}

func parseThreadID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one thread id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid thread id %q", args[0])
	}
	return id, nil
}

func runAsk(ctx context.Context, a *app, flagSet *pflag.FlagSet, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("ask needs a question")
	}
	threadID, _ := flagSet.GetInt64("thread")
	last, _ := flagSet.GetBool("last")
	if threadID != 0 && last {
		return errors.New("--thread and --last are mutually exclusive")
	}

	c, err := client.New(a.cfg.clientConfig(a.logger))
	if err != nil {
		return err
	}
	defer c.Close()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if last {
		threads, err := store.Threads(ctx)
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			return errors.New("no stored threads to continue")
		}
		threadID = threads[0].ID
	}

	var session *state.Session
	if threadID != 0 {
		session, err = state.Resume(ctx, c, store, threadID, state.WithLogger(a.logger))
	} else {
		session, err = state.NewSession(c, state.WithStore(store), state.WithLogger(a.logger))
	}
	if err != nil {
		return err
	}

	printed := 0
	reply, err := session.Ask(ctx, question, func(snap messages.Message) {
		if len(snap.Content) > printed {
			fmt.Fprint(a.stdout, snap.Content[printed:])
			printed = len(snap.Content)
		}
	})
	if err != nil {
		fmt.Fprintln(a.stdout)
		if errors.Is(err, core.ErrStreamCancelled) {
			fmt.Fprintln(a.stderr, "cancelled")
		}
		return err
	}
	if printed < len(reply.Content) {
		fmt.Fprint(a.stdout, reply.Content[printed:])
	}
	fmt.Fprintln(a.stdout)

	if len(reply.Sources) > 0 {
		fmt.Fprintln(a.stdout, "\nSources:")
		for _, src := range reply.Sources {
			fmt.Fprintf(a.stdout, "  - %s\n", render.SourceLabel(src))
		}
	}
	if id, ok := session.ThreadID(); ok {
		fmt.Fprintf(a.stdout, "\nThread: %d\n", id)
	}
	return nil
}

func runThreads(ctx context.Context, a *app, _ *pflag.FlagSet, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	threads, err := store.Threads(ctx)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Fprintln(a.stdout, "No threads.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tTITLE")
	for _, t := range threads {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", t.ID, t.UpdatedAt.Local().Format("2006-01-02 15:04"), t.MessageCount, t.Title)
	}
	return tw.Flush()
}

func runShow(ctx context.Context, a *app, _ *pflag.FlagSet, args []string) error {
	threadID, err := parseThreadID(args)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	msgs, err := store.Messages(ctx, threadID)
	if err != nil {
		return err
	}

	for i, msg := range msgs {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		speaker := "Brain"
		if msg.Role == messages.RoleUser {
			speaker = "You"
		}
		fmt.Fprintf(a.stdout, "%s: %s\n", speaker, msg.Content)
		for _, src := range msg.Sources {
			fmt.Fprintf(a.stdout, "  - %s\n", render.SourceLabel(src))
		}
	}
	return nil
}

func runDelete(ctx context.Context, a *app, _ *pflag.FlagSet, args []string) error {
	threadID, err := parseThreadID(args)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted thread %d.\n", threadID)
	return nil
}

func runExport(ctx context.Context, a *app, flagSet *pflag.FlagSet, args []string) error {
	threadID, err := parseThreadID(args)
	if err != nil {
		return err
	}
	out, _ := flagSet.GetString("out")

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	thread, err := store.Thread(ctx, threadID)
	if err != nil {
		return err
	}
	msgs, err := store.Messages(ctx, threadID)
	if err != nil {
		return err
	}

	if out == "" || out == "-" {
		return render.WriteTranscript(a.stdout, thread.Title, msgs)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := render.WriteTranscript(f, thread.Title, msgs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.WithField("path", out).Info("exported thread")
	return nil
}
