// Package notify pushes short event announcements (override started,
// expired, cancelled, manual power flips) to a Telegram chat.
//
// It is fully optional: without a token the daemon runs without it.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"iptvd/pkg/logx"
)

type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int // default 1
}

type Service struct {
	bot     *tele.Bot
	chat    tele.Recipient
	limiter *rate.Limiter
	log     logx.Logger

	queue  chan string
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the notifier. It returns (nil, nil) when no token is
// configured; callers treat a nil service as disabled.
func New(cfg Config, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, nil
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify: chat id is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	// No poller: this bot only sends.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}

	return &Service{
		bot:     bot,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
		queue:   make(chan string, 64),
	}, nil
}

// Start launches the send worker. Safe to call once per process.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		wctx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(wctx)
		}()
	})
}

func (s *Service) Stop() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// Notify enqueues a message without blocking; when the queue is full the
// message is dropped (these are convenience pings, not an audit trail).
func (s *Service) Notify(text string) {
	if s == nil {
		return
	}
	select {
	case s.queue <- text:
	default:
		s.log.Debug("notification dropped (queue full)")
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.send(text); err != nil {
				s.log.Warn("telegram send failed", logx.Err(err))
			}
		}
	}
}

func (s *Service) send(text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(s.chat, text)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(15 * time.Second):
		return errors.New("send timed out")
	}
}
