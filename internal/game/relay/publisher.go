package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
)

// Config holds the NATS connection settings for the event relay.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "rooms.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher mirrors room broadcasts onto NATS subjects so external
// consumers (spectator views, analytics) can follow matches without a
// room channel. Subjects are <prefix>.<roomCode>.<eventType>.
type Publisher struct {
	nc     *nats.Conn
	config Config
}

func NewPublisher(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{nc: nc, config: cfg}, nil
}

// Publish sends one event envelope. Delivery is best effort; a relay
// failure never blocks or fails the room broadcast it mirrors.
func (p *Publisher) Publish(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("relay marshal failed")
		return
	}
	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, ev.RoomCode, ev.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("relay publish failed")
	}
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// Tee wraps a room sink so every broadcast is also relayed. Targeted
// sends stay off the relay: they carry per-player payloads such as the
// drawer's secret answer.
func Tee(primary session.Sink, pub *Publisher) session.Sink {
	return teeSink{primary: primary, pub: pub}
}

type teeSink struct {
	primary session.Sink
	pub     *Publisher
}

func (t teeSink) Broadcast(ev *events.Event) {
	t.primary.Broadcast(ev)
	t.pub.Publish(ev)
}

func (t teeSink) BroadcastExcept(playerID string, ev *events.Event) {
	t.primary.BroadcastExcept(playerID, ev)
	t.pub.Publish(ev)
}

func (t teeSink) SendTo(playerID string, ev *events.Event) {
	t.primary.SendTo(playerID, ev)
}
