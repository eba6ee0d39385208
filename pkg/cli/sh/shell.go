// Package sh provides an interactive shell typing host commands into a
// simulated bus.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/servotree/pkg/l0/periph"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Sim   *Sim
}

const shellKey = "$shell"

var faultUsage = "BRANCH INDEX " + strings.Join(Faults, "|") + " [N]"

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&AttachCmd,
		&DetachCmd,
		&ModulesCmd,
		&TableCmd,
		&FaultCmd,
		&StepCmd,
		&DiscoverCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	for _, name := range []string{"x", "n", "w", "r"} {
		commands = append(commands, hostCmd(name))
	}
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(s *Sim) *Shell {
	sh := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Sim:         s,
	}
	sh.Shell.Set(shellKey, sh)
	sh.Shell.SetPrompt(fmt.Sprintf("[%d] > ", s.Port.Branches()))
	for _, cmd := range commands {
		sh.Shell.AddCmd(cmd)
	}
	return sh
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Print prints v as JSON in JSON mode, otherwise one line per element.
func (s *Shell) Print(c *ishell.Context, lines []string, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	for _, line := range lines {
		c.Println(line)
	}
}

// Run runs the shell. Each arg is a line to evaluate.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		for _, line := range args {
			if err := s.Shell.Process(strings.Fields(line)...); err != nil {
				log.Fatalln(err)
			}
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func intArg(c *ishell.Context, n int, def int) (int, error) {
	if len(c.Args) <= n {
		return def, nil
	}
	v, err := strconv.Atoi(c.Args[n])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", n+1, err)
	}
	return v, nil
}

func hostCmd(name string) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: "host command",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			line := strings.Join(append([]string{name}, c.Args...), " ")
			replies, err := s.Sim.Host(line)
			if err != nil {
				c.Err(err)
				return
			}
			if replies == nil {
				replies = []string{}
			}
			s.Print(c, replies, replies)
		},
	}
}

var (
	// AttachCmd attaches blank modules.
	AttachCmd = ishell.Cmd{
		Name:    "attach",
		Aliases: []string{"a"},
		Help:    "BRANCH [COUNT]",
		Func: func(c *ishell.Context) {
			branch, err := intArg(c, 0, 1)
			if err == nil {
				var n int
				if n, err = intArg(c, 1, 1); err == nil {
					err = ShellFrom(c).Sim.Attach(periph.Branch(branch), n)
				}
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// DetachCmd removes every simulated module.
	DetachCmd = ishell.Cmd{
		Name: "detach",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Sim.Port.Detach()
		},
	}

	// ModulesCmd lists simulated modules.
	ModulesCmd = ishell.Cmd{
		Name:    "modules",
		Aliases: []string{"m"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			lines := s.Sim.Describe()
			if len(lines) == 0 {
				lines = []string{"No modules attached"}
			}
			s.Print(c, lines, s.Sim.Describe())
		},
	}

	// TableCmd prints the module table of the root.
	TableCmd = ishell.Cmd{
		Name:    "table",
		Aliases: []string{"t"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			modules := s.Sim.Root.Engine.Modules()
			lines := make([]string, 0, len(modules))
			for _, m := range modules {
				lines = append(lines, fmt.Sprintf("%d: by %s status %q", m.Address, m.How, m.Status))
			}
			s.Print(c, lines, modules)
		},
	}

	// FaultCmd sets fault knobs of a simulated module.
	FaultCmd = ishell.Cmd{
		Name:    "fault",
		Aliases: []string{"f"},
		Help:    faultUsage,
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("usage: fault %s", faultUsage))
				return
			}
			branch, err := intArg(c, 0, 0)
			if err != nil {
				c.Err(err)
				return
			}
			index, err := intArg(c, 1, 0)
			if err != nil {
				c.Err(err)
				return
			}
			n, err := intArg(c, 3, 1)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Sim.Fault(periph.Branch(branch), index, c.Args[2], n); err != nil {
				c.Err(err)
			}
		},
	}

	// StepCmd runs iterations of the root loop.
	StepCmd = ishell.Cmd{
		Name:    "step",
		Aliases: []string{"s"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			n, err := intArg(c, 0, 1)
			if err == nil {
				err = ShellFrom(c).Sim.Step(n)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// DiscoverCmd forces a discovery pass.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			res, err := s.Sim.Root.Engine.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			lines := []string{fmt.Sprintf("%d modules on branch %d, %d rollbacks, %d conflicts, %d probed",
				len(res.Modules), res.Branch, res.Rollbacks, res.Conflicts, res.Probed)}
			s.Print(c, lines, res)
		},
	}
)
