package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rankboard/internal/model"
)

// ReconnectDelay is the pause between connection attempts.
const ReconnectDelay = 3 * time.Second

// Subscriber keeps a websocket connection to a Hub open, reconnecting after
// every failure, and hands each event to a Handler.
type Subscriber struct {
	url     string
	handle  Handler
	resync  func(ctx context.Context)
	log     *zap.Logger
	limiter *rate.Limiter
	dialer  *websocket.Dialer
	header  http.Header
}

type SubscriberOption func(*Subscriber)

func WithLogger(l *zap.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReconnectDelay overrides ReconnectDelay.
func WithReconnectDelay(d time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithResync registers fn to run after every successful (re)connect, since
// events sent while disconnected are lost.
func WithResync(fn func(ctx context.Context)) SubscriberOption {
	return func(s *Subscriber) { s.resync = fn }
}

func NewSubscriber(url string, handle Handler, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:     url,
		handle:  handle,
		log:     zap.NewNop(),
		limiter: rate.NewLimiter(rate.Every(ReconnectDelay), 1),
		dialer:  websocket.DefaultDialer,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run connects and dispatches events until ctx is cancelled. It only
// returns ctx's error.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Info("feed disconnected; reconnecting", zap.Error(err))
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	s.log.Debug("feed connected", zap.String("url", s.url))
	if s.resync != nil {
		s.resync(ctx)
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return errors.New("feed closed by server")
			}
			return err
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Debug("ignoring malformed feed message", zap.Error(err))
			continue
		}
		if s.handle != nil {
			s.handle(ctx, ev)
		}
	}
}
