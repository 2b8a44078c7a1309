// Package broadcast рассылает сообщение всем подписчикам с сохранением прогресса
// после каждой отправки, чтобы после перезапуска продолжить с того же места.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/donation-bot/internal/lib/sl"
	"github.com/magabrotheeeer/donation-bot/internal/metrics"
)

// ErrBusy возвращается, если рассылка уже выполняется.
var ErrBusy = errors.New("broadcast already running")

// Sender отправляет сообщение одному адресату.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// TargetSource возвращает полный список адресатов рассылки.
type TargetSource interface {
	ListPhoneNumbers(ctx context.Context) ([]string, error)
}

// Result итог вызова Broadcast.
type Result struct {
	JobID   string
	Sent    int
	Skipped int
	Total   int
	Resumed bool
}

// Runner выполняет не более одной сохраняемой рассылки одновременно.
type Runner struct {
	mu      sync.Mutex
	store   Store
	sender  Sender
	targets TargetSource
	delay   time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option настраивает Runner.
type Option func(*Runner)

// WithMetrics включает учёт отправок.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithIDGenerator подменяет генератор идентификаторов рассылок.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		r.newID = fn
	}
}

// NewRunner создает Runner. delay пауза между отправками.
func NewRunner(store Store, sender Sender, targets TargetSource, delay time.Duration, log *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		sender:  sender,
		targets: targets,
		delay:   delay,
		log:     log,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Broadcast отправляет body всем адресатам, которых ещё нет в сохранённом прогрессе.
// Если сохранена незавершённая рассылка, используется её текст, а не body.
// Первая ошибка отправки останавливает рассылку, прогресс остаётся сохранённым.
func (r *Runner) Broadcast(ctx context.Context, body string) (Result, error) {
	const op = "services.broadcast.Broadcast"

	if !r.mu.TryLock() {
		return Result{}, fmt.Errorf("%s: %w", op, ErrBusy)
	}
	defer r.mu.Unlock()

	state, err := r.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	res := Result{Resumed: !state.Idle()}
	if state.Idle() {
		state = JobState{JobID: r.newID(), ProcessedNumbers: []string{}, MessageBody: body}
		if err := r.store.Save(ctx, state); err != nil {
			return Result{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	res.JobID = state.JobID

	log := r.log.With(slog.String("op", op), slog.String("job_id", state.JobID))
	if res.Resumed {
		log.Info("resuming broadcast", slog.Int("processed", len(state.ProcessedNumbers)))
	}

	targets, err := r.targets.ListPhoneNumbers(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.Total = len(targets)

	processed := make(map[string]struct{}, len(state.ProcessedNumbers))
	for _, n := range state.ProcessedNumbers {
		processed[n] = struct{}{}
	}

	pending := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := processed[t]; ok {
			res.Skipped++
			continue
		}
		pending = append(pending, t)
	}

	for i, target := range pending {
		if err := r.sender.SendMessage(ctx, target, state.MessageBody); err != nil {
			r.metrics.BroadcastSend(false)
			log.Error("broadcast halted", slog.String("target", target), sl.Err(err))
			return res, fmt.Errorf("%s: send to %s: %w", op, target, err)
		}
		r.metrics.BroadcastSend(true)
		res.Sent++

		state.ProcessedNumbers = append(state.ProcessedNumbers, target)
		if err := r.store.Save(ctx, state); err != nil {
			log.Error("failed to persist broadcast progress", sl.Err(err))
			return res, fmt.Errorf("%s: %w", op, err)
		}
		log.Debug("message sent", slog.String("target", target))

		if i < len(pending)-1 {
			if err := wait(ctx, r.delay); err != nil {
				log.Warn("broadcast interrupted", sl.Err(err))
				return res, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if err := r.store.Save(ctx, emptyState()); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("broadcast completed", slog.Int("sent", res.Sent), slog.Int("total", res.Total))
	return res, nil
}

// ResumeOnStartup продолжает незавершённую рассылку, если она сохранена.
func (r *Runner) ResumeOnStartup(ctx context.Context) error {
	const op = "services.broadcast.ResumeOnStartup"

	state, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if state.Idle() {
		return nil
	}
	if _, err := r.Broadcast(ctx, state.MessageBody); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Deliver последовательно отправляет body адресатам без сохранения прогресса.
// Останавливается на первой ошибке и возвращает число успешных отправок.
func Deliver(ctx context.Context, sender Sender, targets []string, body string, delay time.Duration) (int, error) {
	const op = "services.broadcast.Deliver"

	for i, target := range targets {
		if err := sender.SendMessage(ctx, target, body); err != nil {
			return i, fmt.Errorf("%s: send to %s: %w", op, target, err)
		}
		if i < len(targets)-1 {
			if err := wait(ctx, delay); err != nil {
				return i + 1, fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	return len(targets), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
