package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
)

// Job types carried in JobMessage.JobType.
const (
	JobTypeCollect     = "collect"
	JobTypeHealthCheck = "health_check"
)

var (
	// ErrMalformedMessage is returned when a message body is not a JobMessage.
	ErrMalformedMessage = errors.New("malformed job message")

	// ErrUnknownJobType is returned for job types the worker does not handle.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidJob is returned when a job can never succeed as requested.
	ErrInvalidJob = errors.New("invalid job")
)

// JobMessage represents a job request published to the worker topic.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Start and End select historical dates (YYYY-MM-DD). Both empty means
	// current conditions.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Dispatcher routes job messages to the collection job.
type Dispatcher struct {
	job    *CollectionJob
	logger zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(job *CollectionJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle decodes and runs one job message.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobTypeCollect:
		return d.handleCollect(ctx, msg)
	case JobTypeHealthCheck:
		return d.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) handleCollect(ctx context.Context, msg JobMessage) error {
	dates, err := airquality.ParseDateRange(msg.Start, msg.End)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	result, err := d.job.Run(ctx, dates)
	if err != nil {
		if isConfigError(err) {
			return fmt.Errorf("%w: %w", ErrInvalidJob, err)
		}
		return err
	}

	d.logger.Info().
		Str("run_id", result.RunID).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("collect job finished")
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	healthCheckJob := d.job.WithConfig(d.job.config.HealthCheckConfig())
	result, err := healthCheckJob.Run(ctx, nil)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Failures[0].Err)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

func isConfigError(err error) bool {
	return errors.Is(err, airquality.ErrDateRangeTooLong) ||
		errors.Is(err, airquality.ErrInvalidDateRange) ||
		errors.Is(err, airquality.ErrNoLocations) ||
		errors.Is(err, airquality.ErrInvalidLocation) ||
		errors.Is(err, airquality.ErrDuplicateRegion)
}

// ShouldAck reports whether a message that failed with err should be
// acknowledged anyway because redelivery cannot change the outcome.
func ShouldAck(err error) bool {
	return err == nil ||
		errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, ErrInvalidJob)
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string

	// MaxExtension is how long a message's ack deadline is extended while
	// its job runs. It should cover the longest run the job accepts.
	// Default: 30 minutes
	MaxExtension time.Duration

	Dispatcher *Dispatcher
	Logger     zerolog.Logger
}

// AckExtension returns MaxExtension, or the default when unset.
func (c PubSubConfig) AckExtension() time.Duration {
	if c.MaxExtension <= 0 {
		return 30 * time.Minute
	}
	return c.MaxExtension
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Collections are long and call one upstream; take one message at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = cfg.AckExtension()

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Handle(ctx, msg.Data)
	if err != nil {
		if ShouldAck(err) {
			logger.Warn().Err(err).Msg("dropping job")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
