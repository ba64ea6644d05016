package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
	"github.com/sanosuguru/go-simple-meetup/internal/domain/transaction"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
)

const uniqueViolation = "23505"

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID            int64     `db:"id"`
	HeldOn        time.Time `db:"held_on"`
	Name          string    `db:"name"`
	NumberOfSeats int       `db:"number_of_seats"`
	Status        string    `db:"status"`
	Version       int       `db:"version"`
}

type registrationRow struct {
	EventID int64  `db:"event_id"`
	Email   string `db:"email"`
	Name    string `db:"name"`
}

const selectEvents = `SELECT id, held_on, name, number_of_seats, status, version FROM events`

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB, clk clock.Clock) *EventRepository {
	if clk == nil {
		clk = clock.System()
	}
	return &EventRepository{db: db, clock: clk}
}

// conn はコンテキストのトランザクションがあればそれを、無ければDBを返す
func (r *EventRepository) conn(ctx context.Context) (sqlx.ExtContext, *sqlx.Tx) {
	if tx, ok := transaction.From(ctx); ok {
		if stx := UnwrapTx(tx); stx != nil {
			return stx, stx
		}
	}
	return r.db, nil
}

func (r *EventRepository) toEntity(row *eventRow, regs []event.Registration) *event.Event {
	return event.Restore(r.clock, row.ID, row.Version, row.HeldOn, row.Name, row.NumberOfSeats, event.Status(row.Status), regs)
}

// FindByNaturalKey は開催日と名前でイベントを取得する
// トランザクション内では行ロックを取る
func (r *EventRepository) FindByNaturalKey(ctx context.Context, heldOn time.Time, name string) (*event.Event, error) {
	q, tx := r.conn(ctx)
	query := selectEvents + ` WHERE held_on = $1 AND name = $2`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	var row eventRow
	if err := sqlx.GetContext(ctx, q, &row, query, formatDate(heldOn), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}

	regs, err := r.registrations(ctx, q, row.ID)
	if err != nil {
		return nil, err
	}
	return r.toEntity(&row, regs[row.ID]), nil
}

// FindAllOpenEvents は今日より後に開催される受付中のイベントを開催日順に返す
// 「今日」はDBサーバーの日付
func (r *EventRepository) FindAllOpenEvents(ctx context.Context) ([]*event.Event, error) {
	q, _ := r.conn(ctx)
	query := selectEvents + ` WHERE status = 'open' AND held_on > CURRENT_DATE ORDER BY held_on ASC, name ASC`

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, q, &rows, query); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return []*event.Event{}, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	regs, err := r.registrations(ctx, q, ids...)
	if err != nil {
		return nil, err
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = r.toEntity(&rows[i], regs[rows[i].ID])
	}
	return events, nil
}

// registrations は登録を登録順にイベントIDごとにまとめて返す
func (r *EventRepository) registrations(ctx context.Context, q sqlx.QueryerContext, eventIDs ...int64) (map[int64][]event.Registration, error) {
	var rows []registrationRow
	query := `SELECT event_id, email, name FROM registrations WHERE event_id = ANY($1) ORDER BY event_id, id`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("登録取得に失敗しました: %w", err)
	}

	result := make(map[int64][]event.Registration, len(eventIDs))
	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], event.RestoreRegistration(row.Email, row.Name))
	}
	return result, nil
}

// Save はイベントを保存する
// 新規なら採番し、既存なら楽観的ロックで更新する。登録は追記のみ
func (r *EventRepository) Save(ctx context.Context, e *event.Event) error {
	exec, tx := r.conn(ctx)
	if tx == nil {
		own, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
		}
		defer own.Rollback()
		exec = own

		if err := r.save(ctx, exec, e); err != nil {
			return err
		}
		if err := own.Commit(); err != nil {
			return fmt.Errorf("コミットに失敗しました: %w", err)
		}
		return nil
	}
	return r.save(ctx, exec, e)
}

func (r *EventRepository) save(ctx context.Context, exec sqlx.ExtContext, e *event.Event) error {
	now := r.clock.Now()
	if e.ID == 0 {
		if err := r.insert(ctx, exec, e, now); err != nil {
			return err
		}
	} else if err := r.update(ctx, exec, e, now); err != nil {
		return err
	}
	return r.appendRegistrations(ctx, exec, e, now)
}

func (r *EventRepository) insert(ctx context.Context, exec sqlx.ExtContext, e *event.Event, now time.Time) error {
	query := `
		INSERT INTO events (held_on, name, number_of_seats, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := exec.QueryRowxContext(ctx, query,
		formatDate(e.HeldOn()), e.Name(), e.NumberOfSeats(), string(e.Status()), e.Version, now, now,
	).Scan(&e.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", e.Key(), event.ErrDuplicateEvent)
		}
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

func (r *EventRepository) update(ctx context.Context, exec sqlx.ExtContext, e *event.Event, now time.Time) error {
	query := `
		UPDATE events
		SET number_of_seats = $1, status = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`
	result, err := exec.ExecContext(ctx, query, e.NumberOfSeats(), string(e.Status()), now, e.ID, e.Version)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrConcurrentModification
	}

	e.Version++
	return nil
}

// appendRegistrations は未保存の登録を追記する（保存済みのものは無視される）
func (r *EventRepository) appendRegistrations(ctx context.Context, exec sqlx.ExtContext, e *event.Event, now time.Time) error {
	regs := e.Registrations()
	if len(regs) == 0 {
		return nil
	}

	// 登録順を保つためマルチバリューINSERTで一度に入れる
	args := make([]interface{}, 0, len(regs)*4)
	placeholders := make([]string, 0, len(regs))
	for i, reg := range regs {
		base := i * 4
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, e.ID, reg.Email(), reg.Name(), now)
	}

	query := `INSERT INTO registrations (event_id, email, name, created_at) VALUES ` +
		strings.Join(placeholders, ", ") +
		` ON CONFLICT (event_id, email) DO NOTHING`
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("登録の保存に失敗しました: %w", err)
	}
	return nil
}

// CloseEventsHeldBefore は指定日より前に開催された受付中のイベントを締め切る
func (r *EventRepository) CloseEventsHeldBefore(ctx context.Context, day time.Time) (int, error) {
	exec, _ := r.conn(ctx)
	query := `
		UPDATE events
		SET status = 'closed', updated_at = $1, version = version + 1
		WHERE status = 'open' AND held_on < $2
	`
	result, err := exec.ExecContext(ctx, query, r.clock.Now(), formatDate(day))
	if err != nil {
		return 0, fmt.Errorf("イベントの締め切りに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	return int(rowsAffected), nil
}

func formatDate(t time.Time) string {
	return clock.DateOf(t).Format(time.DateOnly)
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
