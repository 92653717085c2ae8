package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/m3rciful/autoorder/core/bootstrap"
	coreconfig "github.com/m3rciful/autoorder/core/config"
	coredatabase "github.com/m3rciful/autoorder/core/database"
	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/control"
	"github.com/m3rciful/autoorder/internal/history"
	"github.com/m3rciful/autoorder/internal/notify"
	"github.com/m3rciful/autoorder/internal/order"
	"github.com/m3rciful/autoorder/internal/settings"
	"github.com/m3rciful/autoorder/internal/userbot"
)

// app holds the wired services shared by the daemon and once modes.
type app struct {
	cfg      *coreconfig.Config
	store    *settings.Store
	history  *history.Store
	client   *userbot.Client
	ctrl     *control.Bot
	notifier *notify.Notifier
	sup      *order.Supervisor
	gate     *order.Gate
	zone     *time.Location
}

// buildApp loads config, runs bootstrap and connects both Telegram
// sides. On success the returned cleanup closes everything in reverse
// order; on failure buildApp has already cleaned up behind itself.
func buildApp(ctx context.Context, cfgPath string) (*app, func(), error) {
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	boot, err := bootstrap.Run(bootstrap.Options{
		Config: cfg,
		Database: coredatabase.Config{
			Path:          cfg.Database.Path,
			MigrationsDir: cfg.Database.MigrationsDir,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	db := boot.DB

	fail := func(err error) (*app, func(), error) {
		if cerr := db.Close(); cerr != nil {
			logger.Warn(ctx, "app", "db.close.fail", slog.Any("err", cerr))
		}
		_ = logger.Shutdown()
		return nil, nil, err
	}

	store, err := settings.NewStore(ctx, db, settings.Defaults{
		ScheduleHours: cfg.Order.ScheduleHours,
		Meals:         cfg.Order.Meals,
		Notifications: notify.DefaultToggles(),
	})
	if err != nil {
		return fail(err)
	}
	hist := history.New(db)

	client, err := userbot.Dial(ctx, userbotConfig(cfg))
	if err != nil {
		return fail(describeDialError(err, cfg))
	}

	ctrl, err := control.New(cfg.Telegram)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn(ctx, "userbot", "close.fail", slog.Any("err", cerr))
		}
		return fail(err)
	}

	notifier := notify.New(ctrl, store, cfg.Telegram.AdminID)
	zone := orderZone(cfg)

	engine := order.NewEngine(client, notifier, order.Config{
		Peer:             cfg.Telegram.BotUsername,
		Trigger:          cfg.Order.TriggerButton,
		WindowStart:      cfg.Order.WindowStartHour,
		WindowEnd:        cfg.Order.WindowEndHour,
		Zone:             zone,
		StartDelay:       seconds(cfg.Order.DelayAfterTriggerSeconds),
		ClickDelay:       seconds(cfg.Order.DelayBetweenClicksSeconds),
		SettleDelay:      seconds(cfg.Order.SettleDelaySeconds),
		PollTimeout:      seconds(cfg.Order.PollTimeoutSeconds),
		PollInterval:     seconds(cfg.Order.PollIntervalSeconds),
		ClickPollTimeout: seconds(cfg.Order.ClickPollTimeoutSeconds),
		HistoryWindow:    cfg.Order.HistoryWindow,
		VerifyWindow:     cfg.Order.VerifyWindow,
	})
	sup := order.NewSupervisor(engine, notifier, cfg.Order.MaxAttempts, seconds(cfg.Order.RetryDelaySeconds), nil)

	a := &app{
		cfg:      cfg,
		store:    store,
		history:  hist,
		client:   client,
		ctrl:     ctrl,
		notifier: notifier,
		sup:      sup,
		gate:     &order.Gate{},
		zone:     zone,
	}
	cleanup := func() {
		if err := a.client.Close(); err != nil {
			if userbot.IsAuthKeyDuplicated(err) {
				dropSession(userbotConfig(cfg))
			} else {
				logger.Warn(context.Background(), "userbot", "close.fail", slog.Any("err", err))
			}
		}
		if err := db.Close(); err != nil {
			logger.Warn(context.Background(), "app", "db.close.fail", slog.Any("err", err))
		}
		_ = logger.Shutdown()
	}
	return a, cleanup, nil
}

// runOrder is the single entry point for supervised runs; both the
// control bot and the scheduler call it through their Run hooks.
func (a *app) runOrder(ctx context.Context, meals []string) order.Result {
	return a.sup.Run(ctx, meals)
}

func userbotConfig(cfg *coreconfig.Config) userbot.Config {
	return userbot.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.SessionFile,
	}
}

func orderZone(cfg *coreconfig.Config) *time.Location {
	offset := cfg.Order.UTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*60*60)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func describeDialError(err error, cfg *coreconfig.Config) error {
	switch {
	case errors.Is(err, userbot.ErrNotAuthorized):
		return fmt.Errorf("no Telegram session at %s: run %q first", cfg.Telegram.SessionFile, "autoorder login")
	case userbot.IsAuthKeyDuplicated(err):
		dropSession(userbotConfig(cfg))
		return fmt.Errorf("telegram session invalidated: %w", err)
	default:
		return fmt.Errorf("connect to Telegram: %w", err)
	}
}

// dropSession removes a session file Telegram has invalidated because
// it was used from two places at once. Keeping it would make every
// restart fail with the same AUTH_KEY_DUPLICATED error.
func dropSession(cfg userbot.Config) {
	if err := userbot.RemoveSession(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "could not remove session file: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "The saved Telegram session was invalidated (used from two places at once) and has been removed.\nRun %q to sign in again.\n", "autoorder login")
}
