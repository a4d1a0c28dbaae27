package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/pokdeng/internal/config"
	"github.com/DoyleJ11/pokdeng/internal/httpapi"
	"github.com/DoyleJ11/pokdeng/internal/logging"
	"github.com/DoyleJ11/pokdeng/internal/session"
	"github.com/DoyleJ11/pokdeng/internal/transport"
	"github.com/DoyleJ11/pokdeng/internal/ws"
)

var envFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pokdeng",
		Short:        "Play Pok Deng with friends, one of you hosting the table",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	f.String("player-name", "", "display name")
	f.String("player-avatar", "", "avatar shown to other players")
	f.String("log-level", "info", "debug, info, warn or error")
	f.Bool("log-development", false, "human-readable logs")
	f.Duration("connect-timeout", 15*time.Second, "give up joining after this long")
	f.Int("turn-seconds", 30, "auto-stand after this many seconds, 0 to disable")

	host := &cobra.Command{
		Use:   "host",
		Short: "Open a room and deal",
		Args:  cobra.NoArgs,
		RunE:  runHost,
	}
	hf := host.Flags()
	hf.String("listen-addr", ":8080", "address guests connect to")
	hf.Bool("reject-notices", false, "tell guests why a request was refused")
	hf.Bool("multipliers", false, "pay deng multipliers")
	hf.Int("default-bet", 10, "bet of a player who never set one")
	hf.Int("min-bet", 1, "smallest allowed bet")
	hf.Int("max-bet", 1000, "largest allowed bet")
	hf.Int("starting-balance", 1000, "chips every player starts with")

	join := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a friend's room",
		Args:  cobra.ExactArgs(1),
		RunE:  runJoin,
	}
	join.Flags().String("host-url", "ws://localhost:8080", "where the host is reachable")

	root.AddCommand(host, join)
	return root
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	c, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(c.LogLevel, c.LogDevelopment)
	if err != nil {
		return config.Config{}, nil, err
	}
	return c, log, nil
}

func runHost(cmd *cobra.Command, _ []string) error {
	c, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var peer *ws.Listener
	listen := func(addr string) (transport.Listener, error) {
		peer = ws.NewListener(addr, log)
		return peer, nil
	}
	self := session.NewProfile(c.PlayerName, c.PlayerAvatar)
	host, err := session.NewHost(ctx, self, listen, c.Session(), log)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           httpapi.SetupRoutes(peer, host, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		defer cancel()
		pterm.Info.Printfln("Room %s is open on %s. Share the code with your friends.", pterm.LightCyan(host.Code()), c.ListenAddr)
		return play(gctx, host, os.Stdin, os.Stdout)
	})
	return g.Wait()
}

func runJoin(cmd *cobra.Command, args []string) error {
	c, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	self := session.NewProfile(c.PlayerName, c.PlayerAvatar)
	spinner, _ := pterm.DefaultSpinner.Start("Joining room " + transport.NormalizeCode(args[0]))
	guest, err := session.JoinRoom(ctx, self, args[0], ws.Dialer{BaseURL: c.HostURL}, c.Session(), log)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Seated at room " + guest.Code())
	return play(ctx, guest, os.Stdin, os.Stdout)
}
