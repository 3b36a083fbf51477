package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/pkg/jobs"
)

const registrationJobKind = "registration_email"

// Notifier receives the activation link of a newly registered user.
type Notifier interface {
	NotifyRegistration(ctx context.Context, user *models.User, link string) error
}

// Message is an outbound e-mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.With(zap.String("component", "log_mailer"))}
}

// Send logs the message and always succeeds.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email delivered to log",
		zap.String("from", msg.From),
		zap.String("to", maskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// NotificationConfig sizes the dispatcher queue.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	FromEmail  string
}

// NotificationDispatcher hands registration messages to a background queue
// so callers never wait on the mailer.
type NotificationDispatcher struct {
	queue   *jobs.Queue
	mailer  Mailer
	metrics *MetricsService
	logger  *zap.Logger
	from    string
}

// NewNotificationDispatcher builds the dispatcher and its worker queue. Call
// Start before use and Stop on shutdown.
func NewNotificationDispatcher(mailer Mailer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{mailer: mailer, metrics: metrics, logger: logger, from: cfg.FromEmail}
	d.queue = jobs.NewQueue("notifications", d.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the queue workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// NotifyRegistration enqueues the welcome message and returns at once.
func (d *NotificationDispatcher) NotifyRegistration(ctx context.Context, user *models.User, link string) error {
	msg := registrationMessage(d.from, user, link)
	if err := d.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Kind: registrationJobKind, Payload: msg}); err != nil {
		d.metrics.RecordNotification("dropped")
		return fmt.Errorf("enqueue registration email: %w", err)
	}
	d.metrics.RecordNotification("queued")
	return nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.metrics.RecordNotification("failed")
		return err
	}
	d.metrics.RecordNotification("sent")
	return nil
}

func registrationMessage(from string, user *models.User, link string) Message {
	body := fmt.Sprintf(`Olá %s, seja bem-vindo ao SGEA!

Clique no link abaixo para ativar sua conta:

%s

Se você não fez este cadastro, ignore este e-mail.
`, user.Name, link)
	return Message{From: from, To: user.Email, Subject: "Confirmação de Cadastro - SGEA", Body: body}
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) <= 2 {
		return local[:min(1, len(local))] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}
