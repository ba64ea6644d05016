package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
	"github.com/sanosuguru/go-simple-meetup/internal/domain/transaction"
	redislock "github.com/sanosuguru/go-simple-meetup/internal/infrastructure/redis"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/logger"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/metrics"
)

// ErrEventBusy は他のリクエストが同じイベントを処理中の場合のエラー
var ErrEventBusy = errors.New("イベントが他のリクエストによって処理中です")

// EventService はイベントのユースケースを提供する
type EventService struct {
	txManager   transaction.Manager
	eventRepo   event.Repository
	lockManager *redislock.LockManager
	clock       clock.Clock
	metrics     *metrics.Metrics
}

// NewEventService はEventServiceを作成する
// lockManager が nil の場合は分散ロックを使わずDBのロックだけで整合性を保つ
func NewEventService(tm transaction.Manager, repo event.Repository, lm *redislock.LockManager, clk clock.Clock, m *metrics.Metrics) *EventService {
	if clk == nil {
		clk = clock.System()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &EventService{txManager: tm, eventRepo: repo, lockManager: lm, clock: clk, metrics: m}
}

// GetEvent は開催日と名前でイベントを取得する（無ければ event.ErrEventNotFound）
func (s *EventService) GetEvent(ctx context.Context, heldOn time.Time, name string) (*event.Event, error) {
	return s.eventRepo.FindByNaturalKey(ctx, clock.DateOf(heldOn), name)
}

// GetOpenEvents は今後開催される受付中のイベントを開催日順に返す
func (s *EventService) GetOpenEvents(ctx context.Context) ([]*event.Event, error) {
	return s.eventRepo.FindAllOpenEvents(ctx)
}

// CreateNewEvent はイベントを作成する
// 同じ開催日・名前のイベントがあれば既存のイベントを持つ *event.DuplicateEventError を返す
func (s *EventService) CreateNewEvent(ctx context.Context, candidate *event.Event) (*event.Event, error) {
	if candidate == nil {
		err := fmt.Errorf("%w: event is required", event.ErrInvalidArgument)
		s.metrics.EventsCreatedTotal.WithLabelValues(createStatus(err)).Inc()
		return nil, err
	}
	key := candidate.Key()

	created, err := s.createNewEvent(ctx, candidate)
	s.metrics.EventsCreatedTotal.WithLabelValues(createStatus(err)).Inc()
	if err != nil {
		logger.Warn("イベント作成に失敗しました", zap.String("event", key.String()), zap.Error(err))
		return nil, err
	}

	logger.Info("イベントを作成しました",
		zap.String("event", key.String()),
		zap.Int("number_of_seats", created.NumberOfSeats()),
	)
	return created, nil
}

func (s *EventService) createNewEvent(ctx context.Context, candidate *event.Event) (*event.Event, error) {
	key := candidate.Key()
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.inTx(ctx, func(txCtx context.Context) error {
		existing, err := s.eventRepo.FindByNaturalKey(txCtx, key.HeldOn, key.Name)
		if err == nil {
			return &event.DuplicateEventError{Existing: existing}
		}
		if !errors.Is(err, event.ErrEventNotFound) {
			return fmt.Errorf("イベント取得に失敗: %w", err)
		}
		return s.eventRepo.Save(txCtx, candidate)
	})
	if err == nil {
		return candidate, nil
	}
	// ロールバックされたので採番済みのIDは無効
	candidate.ID = 0

	var dup *event.DuplicateEventError
	if errors.As(err, &dup) {
		return nil, dup
	}
	if errors.Is(err, event.ErrDuplicateEvent) {
		// 一意制約違反（同時作成）は既存のイベントを読み直して同じエラーにする
		existing, findErr := s.eventRepo.FindByNaturalKey(ctx, key.HeldOn, key.Name)
		if findErr != nil {
			logger.Warn("重複したイベントの再取得に失敗しました", zap.String("event", key.String()), zap.Error(findErr))
			return nil, &event.DuplicateEventError{}
		}
		return nil, &event.DuplicateEventError{Existing: existing}
	}
	return nil, err
}

// RegisterFor は人をイベントに登録する
// どの段階で失敗しても何も書き込まない
func (s *EventService) RegisterFor(ctx context.Context, key event.Key, p event.Person) (event.Registration, error) {
	key = event.NewKey(key.HeldOn, key.Name)

	reg, err := s.registerFor(ctx, key, p)
	s.metrics.RegistrationsTotal.WithLabelValues(registrationStatus(err)).Inc()
	if err != nil {
		logger.Warn("イベント登録に失敗しました", zap.String("event", key.String()), zap.Error(err))
		return event.Registration{}, err
	}

	logger.Info("イベントに登録しました",
		zap.String("event", key.String()),
		zap.String("email", reg.MaskedEmail()),
	)
	return reg, nil
}

func (s *EventService) registerFor(ctx context.Context, key event.Key, p event.Person) (event.Registration, error) {
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return event.Registration{}, err
	}
	defer unlock()

	var reg event.Registration
	err = s.inTx(ctx, func(txCtx context.Context) error {
		e, err := s.eventRepo.FindByNaturalKey(txCtx, key.HeldOn, key.Name)
		if err != nil {
			return err
		}
		r, err := e.Register(p)
		if err != nil {
			return err
		}
		if err := s.eventRepo.Save(txCtx, e); err != nil {
			return err
		}
		reg = r
		return nil
	})
	return reg, err
}

// CloseEvent はイベントを締め切る（締め切り済みならそのまま返す）
func (s *EventService) CloseEvent(ctx context.Context, key event.Key) (*event.Event, error) {
	key = event.NewKey(key.HeldOn, key.Name)
	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var closed *event.Event
	err = s.inTx(ctx, func(txCtx context.Context) error {
		e, err := s.eventRepo.FindByNaturalKey(txCtx, key.HeldOn, key.Name)
		if err != nil {
			return err
		}
		closed = e
		if e.IsClosed() {
			return nil
		}
		e.Close()
		if err := s.eventRepo.Save(txCtx, e); err != nil {
			return err
		}
		s.metrics.EventsClosedTotal.WithLabelValues("manual").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("イベントを締め切りました", zap.String("event", key.String()))
	return closed, nil
}

// ClosePastEvents は開催日が今日より前の受付中イベントを締め切り、件数を返す
func (s *EventService) ClosePastEvents(ctx context.Context) (int, error) {
	today := clock.Today(s.clock)
	n, err := s.eventRepo.CloseEventsHeldBefore(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("過去イベントの締め切りに失敗: %w", err)
	}
	if n > 0 {
		s.metrics.EventsClosedTotal.WithLabelValues("worker").Add(float64(n))
		logger.Info("過去のイベントを締め切りました",
			zap.Int("count", n),
			zap.String("before", today.Format(time.DateOnly)),
		)
	}
	return n, nil
}

// inTx はトランザクション内で fn を実行する
// fn がエラーを返した場合はロールバックする
func (s *EventService) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(transaction.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// lock はイベントの自然キーで分散ロックを取得し、解放関数を返す
func (s *EventService) lock(ctx context.Context, key event.Key) (func(), error) {
	if s.lockManager == nil {
		return func() {}, nil
	}
	l, err := s.lockManager.LockEvent(ctx, key.HeldOn, key.Name)
	if err != nil {
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, ErrEventBusy
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ロック解放に失敗しました", zap.String("event", key.String()), zap.Error(err))
		}
	}, nil
}

func createStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, event.ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, event.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

func registrationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, event.ErrEventClosed):
		return "closed"
	case errors.Is(err, event.ErrPastEvent):
		return "past"
	case errors.Is(err, event.ErrEventFull):
		return "full"
	case errors.Is(err, event.ErrAlreadyRegistered):
		return "duplicate"
	case errors.Is(err, event.ErrEventNotFound):
		return "not_found"
	default:
		return "error"
	}
}
