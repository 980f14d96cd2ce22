package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/realtime"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	"github.com/noah-isme/classroom-grading-api/pkg/jobs"
)

const (
	// NotificationEvent is the push event name for new notifications.
	NotificationEvent = "notification"
	// JobTypeNotificationPush tags push jobs on the notification queue.
	JobTypeNotificationPush = "notification.push"
)

type notificationStore interface {
	CreateMany(ctx context.Context, notifications []models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type pushDispatcher interface {
	Enqueue(job jobs.Job) error
}

// PushChannel delivers events to connected users.
type PushChannel interface {
	IsOnline(ctx context.Context, userID string) bool
	Push(ctx context.Context, userID, event string, payload interface{}) error
}

// Notifier is the fan-out entry point used by the orchestrating services.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, content, link string)
}

// NotificationService writes notifications durably and hands real-time delivery to the push queue.
type NotificationService struct {
	store     notificationStore
	queue     pushDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the service. queue may be nil, which disables push.
func NewNotificationService(store notificationStore, queue pushDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, queue: queue, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Notify never fails the caller: write errors and queue rejections are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, recipients []string, content, link string) {
	recipients = dedupeRecipients(recipients)
	if len(recipients) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	now := s.now().UTC()
	batch := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		batch = append(batch, models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Content:   content,
			Link:      link,
			CreatedAt: now,
		})
	}
	if err := s.store.CreateMany(ctx, batch); err != nil {
		s.metrics.NotificationsFailed()
		s.logger.Sugar().Errorw("failed to store notifications", "recipients", len(batch), "link", link, "error", err)
		return
	}
	s.metrics.NotificationsCreated(len(batch))

	if s.queue == nil {
		return
	}
	for _, notification := range batch {
		job := jobs.Job{ID: notification.ID, Type: JobTypeNotificationPush, Payload: notification}
		if err := s.queue.Enqueue(job); err != nil {
			s.metrics.PushOutcome(PushFailed)
			s.logger.Sugar().Warnw("push not queued", "notification_id", notification.ID, "user_id", notification.UserID, "error", err)
		}
	}
}

// NotificationPage is a page of notifications plus the unread badge count.
type NotificationPage struct {
	Items      []models.Notification `json:"items"`
	Unread     int                   `json:"unread"`
	Pagination models.Pagination     `json:"-"`
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor Actor, req dto.ListNotificationsRequest) (*NotificationPage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	page, size := normalizePage(req.Page, req.PageSize)
	items, total, err := s.store.List(ctx, models.NotificationFilter{UserID: actor.UserID, UnreadOnly: req.UnreadOnly, Page: page, PageSize: size})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.store.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return &NotificationPage{
		Items:      items,
		Unread:     unread,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
	ok, err := s.store.MarkRead(ctx, id, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead flags every notification of the actor as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return n, nil
}

// PushWorker drains the notification queue into the push channel. Delivery is at most once:
// failures are recorded and swallowed so the queue never retries.
type PushWorker struct {
	channel PushChannel
	metrics *MetricsService
	logger  *zap.Logger
}

// NewPushWorker constructs a worker.
func NewPushWorker(channel PushChannel, metrics *MetricsService, logger *zap.Logger) *PushWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushWorker{channel: channel, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *PushWorker) Handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		w.logger.Sugar().Warnw("unexpected push payload", "job_id", job.ID, "type", fmt.Sprintf("%T", job.Payload))
		return nil
	}
	if !w.channel.IsOnline(ctx, notification.UserID) {
		w.metrics.PushOutcome(PushSkipped)
		return nil
	}
	if err := w.channel.Push(ctx, notification.UserID, NotificationEvent, notification); err != nil {
		outcome := PushFailed
		if errors.Is(err, realtime.ErrRecipientOffline) {
			outcome = PushSkipped
		}
		w.metrics.PushOutcome(outcome)
		w.logger.Sugar().Debugw("push not delivered", "notification_id", notification.ID, "user_id", notification.UserID, "error", err)
		return nil
	}
	w.metrics.PushOutcome(PushDelivered)
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
