// Package relay republishes committed snapshots on the bus so readers
// attached to other instances can follow a session.
package relay

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/coordinator"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/log"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/pubsub"
)

const publishTimeout = 5 * time.Second

// SubscriberID is the id the relay registers with on each coordinator.
const SubscriberID = "relay"

type Relay struct {
	pub    pubsub.Publisher
	prefix string
	buffer int
}

func New(pub pubsub.Publisher, prefix string, buffer int) *Relay {
	if buffer <= 0 {
		buffer = 64
	}
	return &Relay{pub: pub, prefix: prefix, buffer: buffer}
}

// Attach subscribes a publisher to c. It runs until c stops.
// Its signature matches coordinator.OpenHook.
func (r *Relay) Attach(c *coordinator.Coordinator) {
	s := &sessionRelay{
		relay:     r,
		sessionID: c.SessionID(),
		channel:   pubsub.SnapshotsChannel(r.prefix, c.SessionID()),
		ch:        make(chan domain.Snapshot, r.buffer),
	}
	if err := c.Subscribe(s); err != nil {
		return
	}
	go s.run(c.Done())
}

// sessionRelay decouples the coordinator worker from bus latency.
type sessionRelay struct {
	relay     *Relay
	sessionID string
	channel   string
	ch        chan domain.Snapshot
}

func (s *sessionRelay) ID() string { return SubscriberID }

func (s *sessionRelay) Deliver(snap domain.Snapshot) bool {
	select {
	case s.ch <- snap:
		return true
	default:
		return false
	}
}

func (s *sessionRelay) run(done <-chan struct{}) {
	l := log.L().With().Str(log.FieldSessionID, s.sessionID).Logger()
	for {
		select {
		case <-done:
			return
		case snap := <-s.ch:
			msg, err := pubsub.NewMessage(pubsub.TypeSnapshot, s.sessionID, snap)
			if err != nil {
				l.Error().Err(err).Msg("failed to encode snapshot")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := s.relay.pub.Publish(ctx, s.channel, msg); err != nil {
				l.Warn().Err(err).Uint64(log.FieldVersion, snap.Version).Msg("failed to relay snapshot")
			}
			cancel()
		}
	}
}
