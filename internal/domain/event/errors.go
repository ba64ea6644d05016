package event

import (
	"errors"
	"fmt"
)

// エラーの種別
// 個々のドメインエラーはいずれか一つの種別をラップする
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrEventNotFound   = errors.New("event not found")
	ErrDuplicateEvent  = errors.New("event already exists")

	// ErrConcurrentModification は楽観的ロックの競合
	ErrConcurrentModification = errors.New("event was modified concurrently")
)

// Event ドメインのエラー定義
var (
	ErrEventDateNotInFuture = fmt.Errorf("%w: event requires a date in the future", ErrInvalidArgument)
	ErrEventNameRequired    = fmt.Errorf("%w: event requires a non-empty name", ErrInvalidArgument)
	ErrEventNameTooLong     = fmt.Errorf("%w: event name must not exceed %d characters", ErrInvalidArgument, MaxNameLength)
	ErrInvalidNumberOfSeats = fmt.Errorf("%w: event requires some seats", ErrInvalidArgument)
	ErrAlreadyRegistered    = fmt.Errorf("%w: already registered", ErrInvalidArgument)
	ErrEmailRequired        = fmt.Errorf("%w: person requires a non-empty email-address", ErrInvalidArgument)
	ErrPersonNameRequired   = fmt.Errorf("%w: person requires a non-empty name", ErrInvalidArgument)

	ErrEventClosed = fmt.Errorf("%w: cannot register for a closed event", ErrInvalidState)
	ErrPastEvent   = fmt.Errorf("%w: cannot register for a past event", ErrInvalidState)
	ErrEventFull   = fmt.Errorf("%w: cannot register for a full event", ErrInvalidState)
)

// DuplicateEventError は同じ日付・名前のイベントが既に存在する場合のエラー
// 既存のイベントを保持する
type DuplicateEventError struct {
	Existing *Event
}

func (e *DuplicateEventError) Error() string {
	if e.Existing == nil {
		return ErrDuplicateEvent.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateEvent, e.Existing)
}

func (e *DuplicateEventError) Unwrap() error {
	return ErrDuplicateEvent
}

func alreadyRegistered(email string) error {
	return fmt.Errorf("%w with email-address %s", ErrAlreadyRegistered, email)
}
