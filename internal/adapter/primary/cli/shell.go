package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pavolctl/internal/domain"
	"pavolctl/internal/logging"
)

func newShellCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run subcommands interactively against the same servers",
		Long: `Each line runs as a pavolctl subcommand with the flags the shell was started with.
"sink 40" and "source 10" are short for "set sink 40" and "set source 10".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				prompt = fmt.Sprintf("pavol %s> ", cfg.CommandEndpoint())
			}
			return newShell(cmd.OutOrStdout(), sessionArgs(cmd)).run(prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "shell prompt (default shows the command endpoint)")
	return cmd
}

// sessionArgs returns the root flags set on the command line, except -v, as
// --name=value arguments, so every shell line resolves the same configuration.
func sessionArgs(cmd *cobra.Command) []string {
	var args []string
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed || f.Name == "verbose" || f.Name == "log-level" {
			return
		}
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

// shell keeps the state of one interactive session.
type shell struct {
	out      io.Writer
	baseArgs []string
	logLevel string
}

func newShell(out io.Writer, baseArgs []string) *shell {
	return &shell{out: out, baseArgs: baseArgs, logLevel: logging.LevelName()}
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("get", readline.PcItem("--json")),
	readline.PcItem("set",
		readline.PcItem("sink"),
		readline.PcItem("source"),
		readline.PcItem("--sink"),
		readline.PcItem("--source"),
		readline.PcItem("--wait=false"),
	),
	readline.PcItem("sink"),
	readline.PcItem("source"),
	readline.PcItem("watch", readline.PcItem("--interval")),
	readline.PcItem("config", readline.PcItem("show")),
	readline.PcItem("log",
		readline.PcItem("error"),
		readline.PcItem("warn"),
		readline.PcItem("info"),
		readline.PcItem("debug"),
		readline.PcItem("trace"),
	),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func (s *shell) run(prompt string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "pavolctl-shell.history"),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "Interactive shell. 'help' for usage, 'exit' to quit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.exec(line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one input line and reports whether the session should end.
func (s *shell) exec(line string) (bool, error) {
	tokens, err := shlex.Split(strings.TrimSpace(line))
	if err != nil {
		return false, fmt.Errorf("parse: %w", err)
	}
	if len(tokens) == 0 {
		return false, nil
	}

	switch tokens[0] {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		s.help()
		return false, nil
	case "shell":
		return false, errors.New("already in the shell")
	case "log":
		return false, s.log(tokens[1:])
	}

	if class, err := domain.ParseDeviceClass(tokens[0]); err == nil {
		if len(tokens) != 2 {
			return false, fmt.Errorf("usage: %s PERCENT", class)
		}
		return false, s.execute([]string{"set", class.String(), tokens[1]})
	}
	return false, s.execute(tokens)
}

// execute runs args through a fresh command tree with the session flags.
func (s *shell) execute(args []string) error {
	full := append([]string(nil), s.baseArgs...)
	full = append(full, "--log-level="+s.logLevel)
	full = append(full, args...)

	root := NewRootCmd()
	root.SetOut(s.out)
	root.SetErr(s.out)
	root.SetArgs(full)
	return root.Execute()
}

// log changes the session log level: "log debug", "log -vv", or "log" to show it.
func (s *shell) log(args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	fs.CountVarP(&vcount, "verbose", "v", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case fs.NArg() > 1 || (fs.NArg() == 1 && vcount > 0):
		return errors.New("usage: log [LEVEL | -v...]")
	case fs.NArg() == 1:
		if err := logging.SetLevelName(fs.Arg(0)); err != nil {
			return err
		}
	case vcount > 0:
		logging.SetVerbosity(vcount)
	}
	s.logLevel = logging.LevelName()
	fmt.Fprintf(s.out, "log level: %s\n", s.logLevel)
	return nil
}

func (s *shell) help() {
	fmt.Fprintln(s.out, `Examples:
  get                         # print sink/source volume
  get --json                  # same, as JSON
  sink 40                     # set the default sink to 40%
  source 10                   # set the default source to 10%
  set --sink 66 --source 10   # set both
  watch --interval 2s         # print changes (Ctrl-C to stop)
  config show                 # effective configuration
  log debug | log -vv         # change logging
  log                         # current log level
  exit / quit                 # leave the shell`)
}
