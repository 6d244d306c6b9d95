package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// refreshCommandTimeout bounds a refresh triggered over MQTT.
const refreshCommandTimeout = 30 * time.Second

// Broker is the subset of Client the bridge needs.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// SnapshotSource is the refresh cache as seen by the bridge.
type SnapshotSource interface {
	Subscribe(fn func(*telemetry.Snapshot))
	ForceRefresh(ctx context.Context) (*telemetry.Snapshot, error)
}

// PublishObserver records publish results; *metrics.Metrics satisfies it.
type PublishObserver interface {
	MQTTPublish(success bool)
}

// Bridge mirrors published snapshots to the broker and turns commands
// received under <prefix>/command/ into cache operations. Only "refresh"
// is handled today.
//
// Thread Safety:
//   - Snapshots are handed over through a one-slot queue; when the broker
//     is slow only the newest snapshot is kept.
type Bridge struct {
	broker   Broker
	source   SnapshotSource
	topics   Topics
	qos      byte
	logger   Logger
	observer PublishObserver

	pending chan *telemetry.Snapshot
	wg      sync.WaitGroup

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	published int64
	failed    int64
}

// NewBridge wires a broker to a snapshot source. logger and observer may be nil.
func NewBridge(broker Broker, source SnapshotSource, topics Topics, qos byte, logger Logger, observer PublishObserver) *Bridge {
	return &Bridge{
		broker:   broker,
		source:   source,
		topics:   topics,
		qos:      qos,
		logger:   logger,
		observer: observer,
		pending:  make(chan *telemetry.Snapshot, 1),
	}
}

// Start subscribes to the command topics and begins publishing snapshots.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	err := b.broker.Subscribe(b.topics.AllCommands(), b.qos, func(topic string, _ []byte) error {
		return b.handleCommand(runCtx, topic)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.cancel = cancel
	b.started = true
	b.source.Subscribe(b.enqueue)

	b.wg.Add(1)
	go b.publishLoop(runCtx)
	return nil
}

// Stop unsubscribes from the command topics and ends the publish loop.
// Snapshots queued but not yet sent are dropped.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.cancel()
	b.mu.Unlock()

	if err := b.broker.Unsubscribe(b.topics.AllCommands()); err != nil && !errors.Is(err, ErrNotConnected) && b.logger != nil {
		b.logger.Warn("command unsubscribe failed", "error", err)
	}
	b.wg.Wait()
}

// Stats returns the number of successful and failed snapshot publishes.
func (b *Bridge) Stats() (published, failed int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.failed
}

// enqueue replaces any queued snapshot with snap without blocking.
func (b *Bridge) enqueue(snap *telemetry.Snapshot) {
	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-b.pending:
			b.publish(snap)
		}
	}
}

func (b *Bridge) publish(snap *telemetry.Snapshot) {
	payload, err := json.Marshal(snap)
	if err == nil {
		err = b.broker.PublishRetained(b.topics.Snapshot(), payload)
	}

	b.mu.Lock()
	if err != nil {
		b.failed++
	} else {
		b.published++
	}
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.MQTTPublish(err == nil)
	}
	if err != nil && b.logger != nil {
		b.logger.Warn("snapshot publish failed", "topic", b.topics.Snapshot(), "error", err)
	}
}

// handleCommand dispatches a message received on a command topic.
func (b *Bridge) handleCommand(ctx context.Context, topic string) error {
	switch topic {
	case b.topics.RefreshCommand():
		return b.handleRefreshCommand(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}
}

func (b *Bridge) handleRefreshCommand(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshCommandTimeout)
	defer cancel()

	if _, err := b.source.ForceRefresh(ctx); err != nil {
		return fmt.Errorf("refresh command: %w", err)
	}
	return nil
}
