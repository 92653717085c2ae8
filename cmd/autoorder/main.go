// Command autoorder keeps a student fed: it drives the campus food
// bot from the operator's own Telegram account on a schedule, exposes
// a control bot for changing that schedule from the phone, and ships
// a one-shot mode plus the interactive first-time login.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/autoorder/core/config"
	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/control"
	"github.com/m3rciful/autoorder/internal/history"
	"github.com/m3rciful/autoorder/internal/schedule"
	"github.com/m3rciful/autoorder/internal/userbot"
)

var (
	configPath string
	loginPhone string
)

func main() {
	root := &cobra.Command{
		Use:          "autoorder",
		Short:        "Automated meal ordering over Telegram",
		Long:         "autoorder runs the ordering daemon: scheduled runs against the food bot\nplus the operator control bot. Subcommands cover one-shot runs and login.",
		SilenceUsage: true,
		RunE:         runDaemon,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $CONFIG_PATH, then config.yml)")

	once := &cobra.Command{
		Use:   "once",
		Short: "Place one supervised order and exit",
		RunE:  runOnce,
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Telegram and save the session file",
		RunE:  runLogin,
	}
	login.Flags().StringVar(&loginPhone, "phone", "", "phone number in international format")

	root.AddCommand(once, login)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "config.yml"
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	a, cleanup, err := buildApp(ctx, configFile())
	if err != nil {
		return err
	}
	defer cleanup()

	a.ctrl.Register(&control.Handlers{
		Settings:    a.store,
		History:     a.history,
		Gate:        a.gate,
		Run:         a.runOrder,
		WindowStart: a.cfg.Order.WindowStartHour,
		WindowEnd:   a.cfg.Order.WindowEndHour,
		Zone:        a.zone,
	})
	daemon := schedule.New(schedule.Options{
		Settings: a.store,
		History:  a.history,
		Gate:     a.gate,
		Run:      a.runOrder,
		Sink:     a.notifier,
		Zone:     a.zone,
	})

	logger.Info(ctx, "app", "ready",
		slog.String("bot", a.cfg.Telegram.BotUsername),
		slog.Duration("startup", time.Since(started)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.ctrl.Run(gctx) })
	g.Go(func() error { return daemon.Run(gctx) })
	err = g.Wait()

	logger.Info(context.Background(), "app", "shutdown")
	return err
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := buildApp(ctx, configFile())
	if err != nil {
		return err
	}
	defer cleanup()

	meals := a.store.SelectedMeals()
	res := a.runOrder(ctx, meals)

	now := time.Now().In(a.zone)
	if err := a.history.Record(ctx, history.At(now, history.SourceManual, meals, res.OK, res.Verified)); err != nil {
		logger.Warn(ctx, "app", "history.fail", slog.Any("err", err))
	}
	if !res.OK {
		return fmt.Errorf("order was not placed (%s)", res.Reason)
	}
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := coreconfig.Load(configFile())
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()

	return userbot.Login(ctx, userbotConfig(cfg), loginPhone, os.Stdin, os.Stdout)
}
