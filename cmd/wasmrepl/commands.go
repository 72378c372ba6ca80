package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/xirelogy/go-wasmrepl"
	"github.com/xirelogy/go-wasmrepl/internal/server"
	"github.com/xirelogy/go-wasmrepl/internal/shell"
	"github.com/xirelogy/go-wasmrepl/internal/transcript"
)

var (
	replCommand = cli.Command{
		Name:   "repl",
		Usage:  "start the interactive shell (default)",
		Action: repl,
	}
	runCommand = cli.Command{
		Name:      "run",
		Usage:     "evaluate a source file in a fresh session",
		ArgsUsage: "FILE",
		Action:    run,
	}
	serveCommand = cli.Command{
		Name:   "serve",
		Usage:  "serve sessions over websocket",
		Flags:  []cli.Flag{addrFlag},
		Action: serve,
	}
	historyCommand = cli.Command{
		Name:   "history",
		Usage:  "list the recorded sessions",
		Action: history,
	}
	replayCommand = cli.Command{
		Name:      "replay",
		Usage:     "re-run a recorded session and compare the results",
		ArgsUsage: "SESSION",
		Action:    replay,
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (s *setup) openStore(required bool) (*transcript.Store, error) {
	if s.cfg.Transcript.Path == "" {
		if required {
			return nil, errors.New("no transcript configured; use --transcript or the transcript.path setting")
		}
		return nil, nil
	}
	return transcript.Open(s.cfg.Transcript.Path, s.logger)
}

func repl(ctx *cli.Context) error {
	s, err := load(ctx)
	if err != nil {
		return err
	}
	defer s.logger.Sync()
	store, err := s.openStore(false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	sess, err := wasmrepl.New(s.cfg.SessionConfig(s.logger, os.Stdout))
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	sh := shell.New(shell.Options{
		Session: sess,
		Store:   store,
		Color:   shell.IsTerminal(os.Stdout),
		Logger:  s.logger,
	})
	fmt.Println("wasmrepl; type :help for commands")
	return sh.Interactive(context.Background())
}

func run(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: wasmrepl run FILE", 2)
	}
	s, err := load(ctx)
	if err != nil {
		return err
	}
	defer s.logger.Sync()
	src, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	return evalSource(context.Background(), s.cfg.SessionConfig(s.logger, nil), string(src), os.Stdout)
}

// evalSource runs src in a fresh session, writing printed lines and the
// result to out.
func evalSource(ctx context.Context, cfg wasmrepl.Config, src string, out io.Writer) error {
	cfg.Output = out
	sess, err := wasmrepl.New(cfg)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	v, err := sess.Run(ctx, src)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if v.Kind != wasmrepl.KindNone {
		fmt.Fprintln(out, wasmrepl.RenderTop(v))
	}
	return nil
}

func serve(ctx *cli.Context) error {
	s, err := load(ctx)
	if err != nil {
		return err
	}
	defer s.logger.Sync()
	store, err := s.openStore(false)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	addr := s.cfg.Server.Addr
	if ctx.IsSet(addrFlag.Name) {
		addr = ctx.String(addrFlag.Name)
	}
	srv := server.New(server.Options{
		Session:     s.cfg.SessionConfig(s.logger, nil),
		Store:       store,
		MaxSessions: s.cfg.Server.MaxSessions,
		Logger:      s.logger,
	})
	sigctx, cancel := signalContext()
	defer cancel()
	return srv.ListenAndServe(sigctx, addr)
}

func history(ctx *cli.Context) error {
	s, err := load(ctx)
	if err != nil {
		return err
	}
	store, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()
	return listSessions(context.Background(), store, os.Stdout)
}

func listSessions(ctx context.Context, store *transcript.Store, out io.Writer) error {
	sums, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, sum := range sums {
		fmt.Fprintf(out, "%s  %4d entries  started %s  updated %s\n",
			sum.Session, sum.Entries, sum.Started.Format("2006-01-02 15:04:05"), humanize.Time(sum.Updated))
	}
	return nil
}

func replay(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: wasmrepl replay SESSION", 2)
	}
	s, err := load(ctx)
	if err != nil {
		return err
	}
	store, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()
	return replaySession(context.Background(), store, ctx.Args().First(), s.cfg.SessionConfig(s.logger, nil), os.Stdout)
}

// replaySession re-evaluates every recorded increment of id in a fresh
// session and fails when a result or error differs from the recording.
func replaySession(ctx context.Context, store *transcript.Store, id string, cfg wasmrepl.Config, out io.Writer) error {
	entries, err := store.Session(ctx, id)
	if err != nil {
		return err
	}
	sess, err := wasmrepl.New(cfg)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	diverged := 0
	for _, e := range entries {
		got, gotErr := "", ""
		v, err := sess.Run(ctx, e.Source)
		if err != nil {
			gotErr = err.Error()
		} else {
			got = wasmrepl.RenderTop(v)
		}
		status := "ok"
		if got != e.Result || gotErr != e.Error {
			status = "DIVERGED"
			diverged++
		}
		shown := got
		if gotErr != "" {
			shown = gotErr
		}
		fmt.Fprintf(out, "[%d] %-8s %s\n", e.Seq, status, shown)
	}
	if diverged > 0 {
		return cli.NewExitError(fmt.Sprintf("%d of %d increments diverged", diverged, len(entries)), 1)
	}
	return nil
}
