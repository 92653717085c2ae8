package userbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/m3rciful/autoorder/core/logger"
)

// termAuth collects the phone number, login code and optional
// two-factor password from the terminal.
type termAuth struct {
	phone string
	in    *bufio.Reader
	out   io.Writer
}

func (a termAuth) prompt(label string) (string, error) {
	if _, err := fmt.Fprint(a.out, label); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a termAuth) Phone(context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Phone number (international format): ")
}

func (a termAuth) Code(context.Context, *tg.AuthSentCode) (string, error) {
	return a.prompt("Login code: ")
}

func (a termAuth) Password(context.Context) (string, error) {
	return a.prompt("Two-factor password: ")
}

func (a termAuth) AcceptTermsOfService(context.Context, tg.HelpTermsOfService) error {
	return nil
}

func (a termAuth) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, log in with an existing account")
}

// Login runs the interactive first-time authentication and writes the
// session file. phone may be empty, in which case it is prompted for.
// in and out are the terminal streams.
func Login(ctx context.Context, cfg Config, phone string, in io.Reader, out io.Writer) error {
	tgc := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	return tgc.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(termAuth{
			phone: strings.TrimSpace(phone),
			in:    bufio.NewReader(in),
			out:   out,
		}, auth.SendCodeOptions{})
		if err := tgc.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		self, err := tgc.Self(ctx)
		if err != nil {
			return fmt.Errorf("confirm login: %w", err)
		}
		logger.Info(ctx, "userbot", "login.ok",
			slog.Int64("user_id", self.ID),
			slog.String("username", self.Username))
		fmt.Fprintf(out, "Logged in as %s (id %d). Session saved to %s.\n",
			displayName(self), self.ID, cfg.SessionFile)
		return nil
	})
}

func displayName(u *tg.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "unnamed"
	}
	return name
}
