package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
)

// NSQConfig configures the NSQ-backed feed.
type NSQConfig struct {
	NSQDAddr    string
	LookupdAddr string
	Topic       string
	Channel     string
	Buffer      int
}

// NSQFeed fans events out across server instances. Published events go to
// an NSQ topic; every instance consumes the topic on its own channel and
// re-publishes into a local Hub, so a local publish is also delivered
// locally through the round trip.
type NSQFeed struct {
	hub      *Hub
	producer *nsq.Producer
	consumer *nsq.Consumer
	topic    string
	logw     io.Closer
}

var _ Feed = (*NSQFeed)(nil)

// NewNSQFeed connects a producer and a consumer for cfg.Topic.
func NewNSQFeed(cfg NSQConfig) (*NSQFeed, error) {
	if cfg.NSQDAddr == "" {
		return nil, errors.New("feed: nsqd address is required")
	}
	if cfg.Topic == "" || cfg.Channel == "" {
		return nil, errors.New("feed: nsq topic and channel are required")
	}

	w := logrus.StandardLogger().WriterLevel(logrus.WarnLevel)
	nsqLogger := log.New(w, "nsq ", 0)

	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(cfg.NSQDAddr, nsqCfg)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("feed: nsq producer: %w", err)
	}
	producer.SetLogger(nsqLogger, nsq.LogLevelWarning)
	if err := producer.Ping(); err != nil {
		producer.Stop()
		w.Close()
		return nil, fmt.Errorf("feed: nsq ping: %w", err)
	}

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		producer.Stop()
		w.Close()
		return nil, fmt.Errorf("feed: nsq consumer: %w", err)
	}
	consumer.SetLogger(nsqLogger, nsq.LogLevelWarning)

	f := &NSQFeed{
		hub:      NewHub(cfg.Buffer),
		producer: producer,
		consumer: consumer,
		topic:    cfg.Topic,
		logw:     w,
	}
	consumer.AddHandler(nsq.HandlerFunc(f.handleMessage))

	if cfg.LookupdAddr != "" {
		err = consumer.ConnectToNSQLookupd(cfg.LookupdAddr)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDAddr)
	}
	if err != nil {
		consumer.Stop()
		producer.Stop()
		w.Close()
		return nil, fmt.Errorf("feed: nsq connect: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewNSQFeed",
		"topic":    cfg.Topic,
		"channel":  cfg.Channel,
	}).Info("NSQ change feed connected")

	return f, nil
}

func (f *NSQFeed) handleMessage(m *nsq.Message) error {
	var e Event
	if err := json.Unmarshal(m.Body, &e); err != nil {
		// A malformed body will never decode; finish it instead of requeueing.
		logrus.WithFields(logrus.Fields{
			"function": "NSQFeed.handleMessage",
			"error":    err.Error(),
		}).Warn("Dropping malformed change event")
		return nil
	}
	return f.hub.Publish(context.Background(), e)
}

// Publish sends the event to the NSQ topic.
func (f *NSQFeed) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("feed: encode event: %w", err)
	}
	if err := f.producer.Publish(f.topic, body); err != nil {
		return fmt.Errorf("feed: nsq publish: %w", err)
	}
	return nil
}

// Subscribe subscribes to the local hub that consumed events land in.
func (f *NSQFeed) Subscribe(table string, types ...EventType) *Subscription {
	return f.hub.Subscribe(table, types...)
}

// Close stops the consumer, then the producer, then the local hub.
func (f *NSQFeed) Close() error {
	f.consumer.Stop()
	<-f.consumer.StopChan
	f.producer.Stop()
	err := f.hub.Close()
	f.logw.Close()
	return err
}
