package event

import (
	"context"
	"time"
)

// Repository はイベントリポジトリのインターフェース
// コンテキストにトランザクションがあればその中で実行する
type Repository interface {
	// FindByNaturalKey は開催日と名前でイベントを取得する（無ければ ErrEventNotFound）
	FindByNaturalKey(ctx context.Context, heldOn time.Time, name string) (*Event, error)

	// Save はイベントを保存する（新規なら ID を採番、既存なら更新して登録を追記）
	Save(ctx context.Context, e *Event) error

	// FindAllOpenEvents は今日より後に開催される受付中のイベントを開催日順に返す
	FindAllOpenEvents(ctx context.Context) ([]*Event, error)

	// CloseEventsHeldBefore は指定日より前に開催された受付中のイベントを締め切る
	CloseEventsHeldBefore(ctx context.Context, day time.Time) (int, error)
}
