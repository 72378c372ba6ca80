// Command wasmrepl is an interactive shell for a typed Python subset that
// compiles every input to WebAssembly.
package main

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/xirelogy/go-wasmrepl/internal/config"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration file",
	}
	maxPagesFlag = cli.UintFlag{
		Name:  "max-pages",
		Usage: "maximum linear memory of a session, in 64KiB pages",
	}
	transcriptFlag = cli.StringFlag{
		Name:  "transcript",
		Usage: "SQLite database recording every evaluation",
	}
	debugFlag = cli.BoolFlag{
		Name:  "debug",
		Usage: "log at debug level",
	}
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "listen address of the remote shell",
	}
)

// setup is the configuration shared by every command.
type setup struct {
	cfg    config.Config
	logger *zap.Logger
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "wasmrepl"
	app.Usage = "evaluate a typed Python subset on WebAssembly"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{configFlag, maxPagesFlag, transcriptFlag, debugFlag}
	app.Action = replCommand.Action
	app.Commands = []cli.Command{
		replCommand,
		runCommand,
		serveCommand,
		historyCommand,
		replayCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	return app
}

// load reads the configuration file and applies the global flags.
func load(ctx *cli.Context) (*setup, error) {
	cfg := config.Default()
	if file := ctx.GlobalString(configFlag.Name); file != "" {
		var err error
		if cfg, err = config.Load(file); err != nil {
			return nil, err
		}
	}
	if ctx.GlobalIsSet(maxPagesFlag.Name) {
		cfg.Memory.MaxPages = uint32(ctx.GlobalUint(maxPagesFlag.Name))
	}
	if ctx.GlobalIsSet(transcriptFlag.Name) {
		cfg.Transcript.Path = ctx.GlobalString(transcriptFlag.Name)
	}
	if ctx.GlobalBool(debugFlag.Name) {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	return &setup{cfg: cfg, logger: logger}, nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
