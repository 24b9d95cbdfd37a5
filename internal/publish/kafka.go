// Package publish forwards stored analyses to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/config"
)

// producer is the subset of *kafka.Producer used here.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Metrics counts messages by outcome.
type Metrics struct {
	Sent    int64 `json:"sent"`
	Acked   int64 `json:"acked"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// KafkaPublisher publishes each analysis as a JSON message keyed by its ID.
// It implements analysis.Publisher.
type KafkaPublisher struct {
	producer     producer
	topic        string
	deliveryChan chan kafka.Event

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	maxRetries  int
	baseBackoff time.Duration

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewKafkaPublisher connects a producer using cfg.
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(ProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	kp := newKafkaPublisher(p, cfg.Topic)
	log.Printf("[Publisher] Kafka producer ready: topic=%s servers=%s", cfg.Topic, cfg.BootstrapServers)
	return kp, nil
}

// ProducerConfig builds the librdkafka settings for cfg. SASL keys are only
// set for SASL protocols.
func ProducerConfig(cfg *config.KafkaConfig) *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":   cfg.BootstrapServers,
		"security.protocol":   cfg.SecurityProtocol,
		"compression.type":    cfg.CompressionType,
		"acks":                cfg.Acks,
		"linger.ms":           cfg.LingerMS,
		"enable.idempotence":  true,
		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	}
	if cfg.UsesSASL() {
		(*cm)["sasl.mechanism"] = cfg.SASLMechanism
		(*cm)["sasl.username"] = cfg.SASLUsername
		(*cm)["sasl.password"] = cfg.SASLPassword
	}
	return cm
}

func newKafkaPublisher(p producer, topic string) *KafkaPublisher {
	kp := &KafkaPublisher{
		producer:     p,
		topic:        topic,
		deliveryChan: make(chan kafka.Event, 1024),
		maxRetries:   5,
		baseBackoff:  100 * time.Millisecond,
		done:         make(chan struct{}),
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()
	return kp
}

func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.done:
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.failed.Add(1)
				log.Printf("[Publisher] Delivery failed for %s: %v", m.Key, m.TopicPartition.Error)
				continue
			}
			kp.acked.Add(1)
		}
	}
}

// BuildMessage encodes a as a Kafka message on topic.
func BuildMessage(topic string, a *analysis.RiskAnalysis) (*kafka.Message, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis %s: %w", a.ID, err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(a.ID),
		Value:          payload,
		Timestamp:      a.Timestamp,
		Headers: []kafka.Header{
			{Key: "risk_level", Value: []byte(a.RiskLevel)},
			{Key: "risk_score", Value: []byte(strconv.Itoa(a.RiskScore))},
			{Key: "source", Value: []byte(a.Source)},
		},
	}, nil
}

// Publish queues a for delivery, retrying while the local queue is full.
// Delivery itself is asynchronous and reflected in Metrics.
func (kp *KafkaPublisher) Publish(ctx context.Context, a *analysis.RiskAnalysis) error {
	msg, err := BuildMessage(kp.topic, a)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= kp.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := kp.baseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				kp.failed.Add(1)
				return fmt.Errorf("publish %s: %w", a.ID, ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := kp.producer.Produce(msg, kp.deliveryChan)
		if err == nil {
			kp.sent.Add(1)
			return nil
		}
		lastErr = err
		if !retriable(err) {
			kp.failed.Add(1)
			return fmt.Errorf("publish %s: %w", a.ID, err)
		}
	}

	kp.failed.Add(1)
	return fmt.Errorf("publish %s: failed after %d retries: %w", a.ID, kp.maxRetries, lastErr)
}

func retriable(err error) bool {
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return false
	}
	return kerr.IsRetriable() || kerr.Code() == kafka.ErrQueueFull
}

// Metrics returns message counters.
func (kp *KafkaPublisher) Metrics() Metrics {
	sent, acked, failed := kp.sent.Load(), kp.acked.Load(), kp.failed.Load()
	return Metrics{Sent: sent, Acked: acked, Failed: failed, Pending: max(0, sent-acked-failed)}
}

// Close flushes outstanding messages for up to timeout and shuts down the
// producer. It is safe to call more than once.
func (kp *KafkaPublisher) Close(timeout time.Duration) {
	kp.closeOnce.Do(func() {
		if remaining := kp.producer.Flush(int(timeout.Milliseconds())); remaining > 0 {
			log.Printf("[Publisher] %d messages still queued after flush", remaining)
		}
		close(kp.done)
		kp.wg.Wait()
		kp.producer.Close()
		m := kp.Metrics()
		log.Printf("[Publisher] Closed: sent=%d acked=%d failed=%d", m.Sent, m.Acked, m.Failed)
	})
}
