// Package userbot implements the chat transport over a regular
// Telegram user session via MTProto. The ordering engine drives the
// remote bot through this client, acting as the operator's own
// account; the account must have opened the bot chat at least once.
package userbot

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/m3rciful/autoorder/core/logger"
	"github.com/m3rciful/autoorder/internal/chat"
)

// ErrNotAuthorized means the session file is missing or revoked.
var ErrNotAuthorized = errors.New("userbot: no authorized session, run the login command first")

// Config carries the MTProto credentials and session location.
type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
}

// Client is a connected user session. It satisfies chat.Client and is
// safe for concurrent use.
type Client struct {
	cfg    Config
	tgc    *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc
	runErr chan error

	mu    sync.Mutex
	peers map[string]tg.InputPeerClass
	self  *tg.User
}

// Dial connects, verifies authorization and keeps the session running
// in the background until Close. The returned error is
// ErrNotAuthorized when no saved session exists.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	tgc := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		tgc:    tgc,
		api:    tgc.API(),
		cancel: cancel,
		runErr: make(chan error, 1),
		peers:  map[string]tg.InputPeerClass{},
	}

	ready := make(chan struct{})
	go func() {
		c.runErr <- tgc.Run(runCtx, func(ctx context.Context) error {
			status, err := tgc.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				return ErrNotAuthorized
			}
			c.mu.Lock()
			c.self = status.User
			c.mu.Unlock()
			logger.Info(ctx, "userbot", "session.ready",
				slog.Int64("user_id", status.User.ID),
				slog.String("username", status.User.Username))
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return c, nil
	case err := <-c.runErr:
		cancel()
		if err == nil {
			err = errors.New("userbot: connection closed before ready")
		}
		return nil, err
	case <-ctx.Done():
		cancel()
		<-c.runErr
		return nil, ctx.Err()
	}
}

// Close stops the background session and waits for it to unwind.
func (c *Client) Close() error {
	c.cancel()
	err := <-c.runErr
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Self returns the logged-in user.
func (c *Client) Self() *tg.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// SendText sends a plain text message to the named peer.
func (c *Client) SendText(ctx context.Context, peer string, text string) error {
	p, err := c.peer(ctx, peer)
	if err != nil {
		return err
	}
	id, err := randomID()
	if err != nil {
		return err
	}
	_, err = c.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     p,
		Message:  text,
		RandomID: id,
	})
	if err != nil {
		return fmt.Errorf("send to @%s: %w", peer, err)
	}
	logger.Debug(ctx, "userbot", "message.sent", slog.String("peer", peer))
	return nil
}

// Recent returns up to limit messages from the peer, most recent
// first. Service messages carry no actions and are dropped.
func (c *Client) Recent(ctx context.Context, peer string, limit int) ([]chat.Message, error) {
	p, err := c.peer(ctx, peer)
	if err != nil {
		return nil, err
	}
	res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  p,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("history of @%s: %w", peer, err)
	}
	raw := historyMessages(res)
	out := make([]chat.Message, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, convertMessage(msg))
	}
	return out, nil
}

// Invoke presses a callback button. A BOT_RESPONSE_TIMEOUT from
// Telegram means the remote bot took the press but answered by editing
// the message instead of acknowledging the callback; the press was
// delivered, so it is not an error.
func (c *Client) Invoke(ctx context.Context, peer string, action chat.Action) error {
	if !action.Invocable() {
		return fmt.Errorf("press %q: action has no callback payload", action.Label)
	}
	p, err := c.peer(ctx, peer)
	if err != nil {
		return err
	}
	req := &tg.MessagesGetBotCallbackAnswerRequest{
		Peer:  p,
		MsgID: action.MsgID,
	}
	req.SetData(action.Data)
	if _, err := c.api.MessagesGetBotCallbackAnswer(ctx, req); err != nil {
		if tgerr.Is(err, "BOT_RESPONSE_TIMEOUT") {
			logger.Debug(ctx, "userbot", "press.slow_ack", slog.String("peer", peer))
			return nil
		}
		return fmt.Errorf("press %q: %w", action.Label, err)
	}
	return nil
}

func (c *Client) peer(ctx context.Context, username string) (tg.InputPeerClass, error) {
	c.mu.Lock()
	if p, ok := c.peers[username]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	res, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve @%s: %w", username, err)
	}
	p := resolvedPeer(res)
	if p == nil {
		return nil, fmt.Errorf("resolve @%s: response carries no usable peer", username)
	}

	c.mu.Lock()
	c.peers[username] = p
	c.mu.Unlock()
	logger.Debug(ctx, "userbot", "peer.resolved", slog.String("peer", username))
	return p, nil
}

func resolvedPeer(res *tg.ContactsResolvedPeer) tg.InputPeerClass {
	switch p := res.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range res.Users {
			if user, ok := u.(*tg.User); ok && user.ID == p.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
			}
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerChannel:
		for _, ch := range res.Chats {
			if channel, ok := ch.(*tg.Channel); ok && channel.ID == p.ChannelID {
				return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
			}
		}
	}
	return nil
}

func randomID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("random id: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// IsAuthKeyDuplicated reports whether Telegram revoked the session
// because it was used from two places at once. The session file is
// useless afterwards and must be recreated through login.
func IsAuthKeyDuplicated(err error) bool {
	return tgerr.Is(err, "AUTH_KEY_DUPLICATED")
}

// RemoveSession deletes the saved session file. Used after
// AUTH_KEY_DUPLICATED, when the file only wastes the next start.
func RemoveSession(cfg Config) error {
	err := os.Remove(cfg.SessionFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
