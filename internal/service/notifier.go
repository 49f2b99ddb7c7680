package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/wedding-marketplace-api/internal/queue"
)

// Notifier hands one-time links to whatever delivers mail.  Failures are
// reported to the caller, which logs and ignores them so that the HTTP
// response never depends on the broker.
type Notifier interface {
	Notify(ctx context.Context, ev queue.NotificationEvent) error
}

// AMQPNotifier publishes NotificationEvents to a durable RabbitMQ queue.
// Each call opens its own connection; notifications are rare (password
// resets, verification mails) so pooling is not worth the state.
type AMQPNotifier struct {
	URL   string
	Queue string
}

func NewAMQPNotifier(url, queueName string) *AMQPNotifier {
	return &AMQPNotifier{URL: url, Queue: queueName}
}

// Notify publishes ev as a persistent JSON message on the default exchange
// with the queue name as routing key.  ctx bounds the whole exchange,
// handshake included.
func (n *AMQPNotifier) Notify(ctx context.Context, ev queue.NotificationEvent) error {
	conn, err := amqp.DialConfig(n.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()
	// channel open and queue declare take no context; closing the
	// connection unblocks them
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		n.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", n.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// dialContext returns an amqp dialer bound to ctx.  The connection deadline
// follows ctx so a broker that accepts and then stays silent fails the
// handshake instead of holding it for the library's default timeout.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		dl, ok := ctx.Deadline()
		if !ok {
			dl = time.Now().Add(30 * time.Second)
		}
		if err := conn.SetDeadline(dl); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// ErrNotifyQueueFull is returned by AsyncNotifier when its buffer is full.
var ErrNotifyQueueFull = errors.New("notify: queue full")

// AsyncNotifier decouples request handling from delivery: Notify only
// enqueues, Run publishes through the wrapped Notifier.  Forgot-password
// therefore answers in the same time whether or not an event was produced,
// even when the broker is slow or down.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	log     *zap.Logger
	events  chan queue.NotificationEvent

	mu     sync.RWMutex
	closed bool
}

// NewAsyncNotifier buffers up to size events; each delivery gets timeout.
func NewAsyncNotifier(next Notifier, size int, timeout time.Duration, log *zap.Logger) *AsyncNotifier {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AsyncNotifier{next: next, timeout: timeout, log: log, events: make(chan queue.NotificationEvent, size)}
}

// Notify enqueues ev without blocking.  ctx is not carried over: the event
// outlives the request that produced it.
func (a *AsyncNotifier) Notify(_ context.Context, ev queue.NotificationEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrNotifyQueueFull
	}
	select {
	case a.events <- ev:
		return nil
	default:
		return ErrNotifyQueueFull
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// left with a fresh per-event timeout.
func (a *AsyncNotifier) Run(ctx context.Context) {
	for {
		select {
		case ev := <-a.events:
			a.deliver(ev)
		case <-ctx.Done():
			a.mu.Lock()
			a.closed = true
			a.mu.Unlock()
			for {
				select {
				case ev := <-a.events:
					a.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncNotifier) deliver(ev queue.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.next.Notify(ctx, ev); err != nil {
		a.log.Warn("notify_failed", zap.String("type", ev.Type), zap.String("user_id", ev.PrincipalID), zap.Error(err))
	}
}
