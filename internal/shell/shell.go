package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/vdisk"
)

// ErrExit is returned by Execute for the exit command.
var ErrExit = errors.New("exit")

// Shell is an interactive command loop over one volume. The current
// directory and the cd stack live here, not on the volume.
type Shell struct {
	vol   *vdisk.Volume
	out   io.Writer
	cwd   int32
	stack []frame
	// Prompt is printed before each line when non-empty.
	Prompt func(s *Shell) string
}

type frame struct {
	head int32
	name string
}

// New creates a shell positioned at the root directory of vol.
func New(vol *vdisk.Volume, out io.Writer) *Shell {
	return &Shell{
		vol:    vol,
		out:    out,
		cwd:    vol.Root(),
		Prompt: DefaultPrompt,
	}
}

// DefaultPrompt renders the working directory as H:\DIR\SUB> .
func DefaultPrompt(s *Shell) string {
	return `H:\` + strings.Join(s.pathNames(), `\`) + "> "
}

// Cwd returns the head cluster of the current directory.
func (s *Shell) Cwd() int32 { return s.cwd }

// Path returns the current directory as an absolute slash separated path.
func (s *Shell) Path() string {
	return "/" + strings.Join(s.pathNames(), "/")
}

func (s *Shell) pathNames() []string {
	names := make([]string, len(s.stack))
	for i, f := range s.stack {
		names[i] = f.name
	}
	return names
}

// Run reads commands from in until exit or end of input. Command errors are
// printed as "Error: <message>" and do not stop the loop. The volume is
// synced before Run returns; closing it is left to the caller.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		if s.Prompt != nil {
			fmt.Fprint(s.out, s.Prompt(s))
		}
		if !sc.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.Execute(ctx, sc.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return s.vol.Sync(ctx)
}

// Execute runs one command line. Blank lines are ignored.
func (s *Shell) Execute(ctx context.Context, line string) error {
	args := Tokenize(strings.TrimSpace(line))
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])
	cmd, ok := lookup(name)
	if !ok {
		return fmt.Errorf("unknown command %q, type help for a list", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(s, ctx, args[1:])
}
