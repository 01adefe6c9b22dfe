package shell

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/hupe1980/vdisk"
	"github.com/hupe1980/vdisk/codec"
)

type command struct {
	name    string
	usage   string
	help    string
	minArgs int
	run     func(s *Shell, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "ls", usage: "ls", help: "List directory contents", run: (*Shell).ls},
		{name: "cd", usage: "cd <dir>", help: "Change current directory, cd .. goes back", minArgs: 1, run: (*Shell).cd},
		{name: "pwd", usage: "pwd", help: "Print the current directory", run: (*Shell).pwd},
		{name: "mkdir", usage: "mkdir <dir>", help: "Create a new directory", minArgs: 1, run: (*Shell).mkdir},
		{name: "rmdir", usage: "rmdir <dir>", help: "Remove an empty directory", minArgs: 1, run: (*Shell).rmdir},
		{name: "touch", usage: "touch <file>", help: "Create an empty file", minArgs: 1, run: (*Shell).touch},
		{name: "rm", usage: "rm <file>", help: "Delete a file", minArgs: 1, run: (*Shell).rm},
		{name: "cat", usage: "cat <file>", help: "Display file contents", minArgs: 1, run: (*Shell).cat},
		{name: "echo", usage: `echo "text" <file> [--append]`, help: "Write or append text to a file", minArgs: 2, run: (*Shell).echo},
		{name: "cp", usage: "cp <src> <dst>", help: "Copy a file", minArgs: 2, run: (*Shell).cp},
		{name: "mv", usage: "mv <src> <dst>", help: "Rename a file", minArgs: 2, run: (*Shell).mv},
		{name: "stat", usage: "stat <name>", help: "Show an entry's record", minArgs: 1, run: (*Shell).stat},
		{name: "df", usage: "df", help: "Show space usage", run: (*Shell).df},
		{name: "check", usage: "check [--json]", help: "Check the allocation table", run: (*Shell).check},
		{name: "sync", usage: "sync", help: "Save the allocation table", run: (*Shell).sync},
		{name: "clear", usage: "clear", help: "Clear the screen", run: (*Shell).clear},
		{name: "help", usage: "help", help: "Show available commands", run: (*Shell).help},
		{name: "exit", usage: "exit", help: "Save and leave the shell", run: (*Shell).exit},
	}
}

func lookup(name string) (command, bool) {
	i := slices.IndexFunc(commands, func(c command) bool { return c.name == name })
	if i < 0 {
		return command{}, false
	}
	return commands[i], true
}

func (s *Shell) help(context.Context, []string) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "%s\t%s\n", c.usage, c.help)
	}
	return tw.Flush()
}

func (s *Shell) exit(ctx context.Context, _ []string) error {
	if err := s.vol.Sync(ctx); err != nil {
		return err
	}
	return ErrExit
}

func (s *Shell) sync(ctx context.Context, _ []string) error {
	return s.vol.Sync(ctx)
}

func (s *Shell) clear(context.Context, []string) error {
	_, err := fmt.Fprint(s.out, "\033[H\033[2J")
	return err
}

func (s *Shell) ls(ctx context.Context, _ []string) error {
	entries, err := s.vol.List(ctx, s.cwd)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(s.out, "%s/\n", e.DisplayName())
			continue
		}
		fmt.Fprintln(s.out, e.DisplayName())
	}
	return nil
}

func (s *Shell) cd(ctx context.Context, args []string) error {
	switch args[0] {
	case "..":
		if n := len(s.stack); n > 0 {
			s.cwd = s.stack[n-1].head
			s.stack = s.stack[:n-1]
		}
		return nil
	case "/", `\`:
		if len(s.stack) > 0 {
			s.cwd = s.stack[0].head
			s.stack = s.stack[:0]
		}
		return nil
	}

	ent, err := s.vol.Stat(ctx, s.cwd, args[0])
	if err != nil {
		return err
	}
	if !ent.IsDir() {
		return fmt.Errorf("%s: %w", ent.DisplayName(), vdisk.ErrWrongType)
	}
	s.stack = append(s.stack, frame{head: s.cwd, name: ent.DisplayName()})
	s.cwd = ent.FirstCluster
	return nil
}

func (s *Shell) pwd(context.Context, []string) error {
	_, err := fmt.Fprintln(s.out, s.Path())
	return err
}

func (s *Shell) mkdir(ctx context.Context, args []string) error {
	return s.vol.CreateDirectory(ctx, s.cwd, args[0])
}

func (s *Shell) rmdir(ctx context.Context, args []string) error {
	return s.vol.RemoveDirectory(ctx, s.cwd, args[0])
}

// touch creates the file only when the name is free.
func (s *Shell) touch(ctx context.Context, args []string) error {
	_, ok, err := s.vol.Find(ctx, s.cwd, args[0])
	if err != nil || ok {
		return err
	}
	return s.vol.CreateFile(ctx, s.cwd, args[0])
}

func (s *Shell) rm(ctx context.Context, args []string) error {
	return s.vol.DeleteFile(ctx, s.cwd, args[0])
}

func (s *Shell) cat(ctx context.Context, args []string) error {
	data, err := s.vol.ReadFile(ctx, s.cwd, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

// echo writes text to file, creating the file when absent. With --append,
// anywhere on the line, the text is added to the existing content.
func (s *Shell) echo(ctx context.Context, args []string) error {
	appendMode := slices.Contains(args, "--append")
	args = slices.DeleteFunc(slices.Clone(args), func(a string) bool { return a == "--append" })
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", `echo "text" <file> [--append]`)
	}
	text, name := args[0], args[1]

	_, ok, err := s.vol.Find(ctx, s.cwd, name)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.vol.CreateFile(ctx, s.cwd, name); err != nil {
			return err
		}
	}
	if appendMode && ok {
		return s.vol.AppendFile(ctx, s.cwd, name, []byte(text))
	}
	return s.vol.WriteFile(ctx, s.cwd, name, []byte(text))
}

func (s *Shell) cp(ctx context.Context, args []string) error {
	return s.vol.CopyFile(ctx, s.cwd, args[0], args[1])
}

func (s *Shell) mv(ctx context.Context, args []string) error {
	return s.vol.MoveFile(ctx, s.cwd, args[0], args[1])
}

func (s *Shell) stat(ctx context.Context, args []string) error {
	ent, err := s.vol.Stat(ctx, s.cwd, args[0])
	if err != nil {
		return err
	}
	kind := "file"
	if ent.IsDir() {
		kind = "directory"
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", ent.DisplayName())
	fmt.Fprintf(tw, "Stored:\t%q\n", ent.Name)
	fmt.Fprintf(tw, "Type:\t%s\n", kind)
	fmt.Fprintf(tw, "First cluster:\t%d\n", ent.FirstCluster)
	fmt.Fprintf(tw, "Size:\t%d\n", ent.Size)
	return tw.Flush()
}

func (s *Shell) df(ctx context.Context, _ []string) error {
	st, err := s.vol.Stats(ctx)
	if err != nil {
		return err
	}
	g := st.Geometry
	tw := tabwriter.NewWriter(s.out, 0, 4, 1, ' ', 0)
	if st.Label != "" {
		fmt.Fprintf(tw, "Label:\t%s\n", st.Label)
	}
	fmt.Fprintf(tw, "Geometry:\t%d clusters of %d bytes\n", g.ClusterCount, g.ClusterSize)
	fmt.Fprintf(tw, "Data clusters:\t%d\n", st.DataClusters)
	fmt.Fprintf(tw, "Used:\t%d\n", st.UsedClusters)
	fmt.Fprintf(tw, "Free:\t%d (%d bytes)\n", st.FreeClusters, st.FreeBytes)
	if st.UnsavedWrites {
		fmt.Fprintf(tw, "Unsaved:\tyes\n")
	}
	return tw.Flush()
}

func (s *Shell) check(ctx context.Context, args []string) error {
	r, err := s.vol.Check(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(args, "--json") {
		data, err := codec.GoJSON{}.MarshalIndent(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.out, "%s\n", data)
		return err
	}
	return WriteReport(s.out, r)
}
