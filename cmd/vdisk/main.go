package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/vdisk"
	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/codec"
	"github.com/hupe1980/vdisk/internal/shell"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

type app struct {
	cfg *Config
}

func newApp() *cli.App {
	a := &app{}
	return &cli.App{
		Name:  appName,
		Usage: "a FAT style file system inside a single image file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "image file to open or create"},
			&cli.IntFlag{Name: "cluster-size", Usage: "bytes per cluster for a new image"},
			&cli.IntFlag{Name: "cluster-count", Usage: "clusters in a new image"},
			&cli.StringFlag{Name: "label", Usage: "volume label written when formatting"},
			&cli.StringFlag{Name: "device", Usage: "image access method: file or mmap"},
			&cli.BoolFlag{Name: "auto-save", Usage: "save the allocation table after every change"},
			&cli.Int64Flag{Name: "io-limit", Usage: "cluster transfer limit in bytes per second"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Before: a.configure,
		Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, _ *cli.Context) error {
			return runShell(ctx, vol)
		}),
		Commands: []*cli.Command{{
			Name:   "shell",
			Usage:  "start the interactive shell (default)",
			Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, _ *cli.Context) error {
				return runShell(ctx, vol)
			}),
		}, {
			Name:      "exec",
			Usage:     "run one shell command line and exit",
			ArgsUsage: "<command> [args...]",
			Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, c *cli.Context) error {
				if c.NArg() == 0 {
					return cli.Exit("exec needs a command", 2)
				}
				err := shell.New(vol, os.Stdout).Execute(ctx, quoteArgs(c.Args().Slice()))
				if errors.Is(err, shell.ErrExit) {
					return nil
				}
				return err
			}),
		}, {
			Name:  "check",
			Usage: "check the allocation table, exits 1 when problems are found",
			Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"}},
			Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, c *cli.Context) error {
				r, err := vol.Check(ctx)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					data, err := codec.GoJSON{}.MarshalIndent(r)
					if err != nil {
						return err
					}
					fmt.Printf("%s\n", data)
				} else if err := shell.WriteReport(os.Stdout, r); err != nil {
					return err
				}
				if !r.Clean() {
					return cli.Exit("", 1)
				}
				return nil
			}),
		}, {
			Name:  "df",
			Usage: "show space usage",
			Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, _ *cli.Context) error {
				return shell.New(vol, os.Stdout).Execute(ctx, "df")
			}),
		}, {
			Name:      "export",
			Usage:     "copy the image into the snapshot store",
			ArgsUsage: "<name>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "compression", Usage: "none, lz4 or zstd"},
				&cli.IntFlag{Name: "frame-clusters", Usage: "clusters per compressed frame"},
				&cli.IntFlag{Name: "workers", Usage: "frames compressed in parallel"},
			},
			Action: a.withVolume(func(ctx context.Context, vol *vdisk.Volume, c *cli.Context) error {
				name := c.Args().First()
				if name == "" {
					return cli.Exit("export needs a snapshot name", 2)
				}
				opts, err := a.snapshotOptions(c)
				if err != nil {
					return err
				}
				store, err := a.cfg.OpenStore(ctx)
				if err != nil {
					return err
				}
				m, err := vol.ExportSnapshot(ctx, store, name, opts...)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d frames, %d -> %d bytes (%s, ratio %.2f)\n",
					m.Name, len(m.Frames), m.RawBytes, m.Bytes, m.Compression, m.Ratio())
				return nil
			}),
		}, {
			Name:      "import",
			Usage:     "restore a snapshot into a new image file",
			ArgsUsage: "<name> <path>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.Exit("import needs a snapshot name and a target path", 2)
				}
				store, err := a.cfg.OpenStore(c.Context)
				if err != nil {
					return err
				}
				opts, err := a.cfg.Options()
				if err != nil {
					return err
				}
				vol, err := vdisk.ImportSnapshot(c.Context, store, c.Args().Get(0), c.Args().Get(1), opts...)
				if err != nil {
					return err
				}
				return vol.Close()
			},
		}, {
			Name:  "snapshots",
			Usage: "manage the snapshot store",
			Subcommands: []*cli.Command{{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "list snapshot names",
				Flags:   []cli.Flag{&cli.StringFlag{Name: "prefix", Usage: "only names starting with prefix"}},
				Action: a.withStore(func(ctx context.Context, store blobstore.BlobStore, c *cli.Context) error {
					names, err := vdisk.ListSnapshots(ctx, store, c.String("prefix"))
					if err != nil {
						return err
					}
					for _, n := range names {
						fmt.Println(n)
					}
					return nil
				}),
			}, {
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "delete a snapshot",
				ArgsUsage: "<name>",
				Action: a.withStore(func(ctx context.Context, store blobstore.BlobStore, c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("delete needs a snapshot name", 2)
					}
					return vdisk.DeleteSnapshot(ctx, store, c.Args().First())
				}),
			}},
		}},
	}
}

// configure loads the config file and environment, then applies the flags
// that were set on the command line.
func (a *app) configure(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("image") {
		cfg.Image = c.String("image")
	}
	if c.IsSet("cluster-size") {
		cfg.ClusterSize = c.Int("cluster-size")
	}
	if c.IsSet("cluster-count") {
		cfg.ClusterCount = c.Int("cluster-count")
	}
	if c.IsSet("label") {
		cfg.Label = c.String("label")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("auto-save") {
		cfg.AutoSave = c.Bool("auto-save")
	}
	if c.IsSet("io-limit") {
		cfg.IOLimit = c.Int64("io-limit")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) withVolume(fn func(ctx context.Context, vol *vdisk.Volume, c *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		opts, err := a.cfg.Options()
		if err != nil {
			return err
		}
		vol, err := vdisk.Open(c.Context, a.cfg.Image, opts...)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.cfg.Image, err)
		}
		defer func() {
			if cerr := vol.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(c.Context, vol, c)
	}
}

func (a *app) withStore(fn func(ctx context.Context, store blobstore.BlobStore, c *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		store, err := a.cfg.OpenStore(c.Context)
		if err != nil {
			return err
		}
		return fn(c.Context, store, c)
	}
}

func (a *app) snapshotOptions(c *cli.Context) ([]vdisk.SnapshotOption, error) {
	name := a.cfg.Compression
	if c.IsSet("compression") {
		name = c.String("compression")
	}
	comp, err := vdisk.ParseCompression(name)
	if err != nil {
		return nil, err
	}
	opts := []vdisk.SnapshotOption{vdisk.WithCompression(comp)}
	if n := c.Int("frame-clusters"); n > 0 {
		opts = append(opts, vdisk.WithFrameClusters(n))
	}
	if n := c.Int("workers"); n > 0 {
		opts = append(opts, vdisk.WithWorkers(n))
	}
	return opts, nil
}

func runShell(ctx context.Context, vol *vdisk.Volume) error {
	fmt.Println("Virtual disk shell. Type help for a list of commands.")
	return shell.New(vol, os.Stdout).Run(ctx, os.Stdin)
}

// quoteArgs rebuilds a command line from already split arguments so that
// arguments containing spaces survive Tokenize.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
