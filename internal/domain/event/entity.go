package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
)

// Status はイベントの状態を表す
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const (
	// DefaultNumberOfSeats は座席数を指定しない場合の座席数
	DefaultNumberOfSeats = 20
	// MaxNameLength はイベント名の最大文字数
	MaxNameLength = 512
)

// Key はイベントの自然キー（開催日 + 名前）
// 比較可能なので map のキーとしてそのまま使える
type Key struct {
	HeldOn time.Time
	Name   string
}

// NewKey は開催日を暦日に正規化した自然キーを作成する
func NewKey(heldOn time.Time, name string) Key {
	return Key{HeldOn: clock.DateOf(heldOn), Name: name}
}

func (k Key) String() string {
	return k.HeldOn.Format(time.DateOnly) + "/" + k.Name
}

// Event はイベント集約を表す
// 登録の追加と締め切り以外の方法で状態を変更してはならない
type Event struct {
	ID      int64 // 永続化時に採番される
	Version int   // 楽観的ロック用

	heldOn        time.Time
	name          string
	numberOfSeats int
	status        Status
	registrations []Registration

	clock clock.Clock
}

// NewEvent は新しいイベントを作成する
func NewEvent(clk clock.Clock, heldOn time.Time, name string, numberOfSeats int) (*Event, error) {
	if clk == nil {
		clk = clock.System()
	}
	if heldOn.IsZero() || clock.DateOf(heldOn).Before(clock.Today(clk)) {
		return nil, ErrEventDateNotInFuture
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEventNameRequired
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, ErrEventNameTooLong
	}

	e := &Event{
		heldOn: clock.DateOf(heldOn),
		name:   name,
		status: StatusOpen,
		clock:  clk,
	}
	if err := e.SetNumberOfSeats(numberOfSeats); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEventWithDefaultSeats はデフォルトの座席数でイベントを作成する
func NewEventWithDefaultSeats(clk clock.Clock, heldOn time.Time, name string) (*Event, error) {
	return NewEvent(clk, heldOn, name, DefaultNumberOfSeats)
}

// Restore は永続化されたイベントを復元する
// 開催日の検証は行わない（保存済みのイベントは過去になりうる）
func Restore(clk clock.Clock, id int64, version int, heldOn time.Time, name string, numberOfSeats int, status Status, registrations []Registration) *Event {
	if clk == nil {
		clk = clock.System()
	}
	regs := make([]Registration, len(registrations))
	copy(regs, registrations)
	return &Event{
		ID:            id,
		Version:       version,
		heldOn:        clock.DateOf(heldOn),
		name:          name,
		numberOfSeats: numberOfSeats,
		status:        status,
		registrations: regs,
		clock:         clk,
	}
}

func (e *Event) HeldOn() time.Time { return e.heldOn }

func (e *Event) Name() string { return e.name }

func (e *Event) NumberOfSeats() int { return e.numberOfSeats }

func (e *Event) Status() Status { return e.status }

// Key は自然キーを返す
func (e *Event) Key() Key {
	return Key{HeldOn: e.heldOn, Name: e.name}
}

// Registrations は登録の一覧を登録順に返す
// 返されるスライスはコピーなので集約の状態には影響しない
func (e *Event) Registrations() []Registration {
	regs := make([]Registration, len(e.registrations))
	copy(regs, e.registrations)
	return regs
}

// SetNumberOfSeats は座席数を変更する
// 既存の登録数より少なくしても検証は行わない
func (e *Event) SetNumberOfSeats(n int) error {
	if n < 0 {
		return ErrInvalidNumberOfSeats
	}
	e.numberOfSeats = n
	return nil
}

func (e *Event) IsOpen() bool { return e.status == StatusOpen }

func (e *Event) IsClosed() bool { return e.status == StatusClosed }

// IsPastEvent は開催日が今日より前かを返す
func (e *Event) IsPastEvent() bool {
	return e.heldOn.Before(clock.Today(e.clock))
}

// IsFull は満席かを返す
func (e *Event) IsFull() bool {
	return len(e.registrations) == e.numberOfSeats
}

// NumberOfFreeSeats は空席数を返す
func (e *Event) NumberOfFreeSeats() int {
	return e.numberOfSeats - len(e.registrations)
}

// Close はイベントを締め切る（元に戻すことはできない）
func (e *Event) Close() {
	e.status = StatusClosed
}

// Register は人をイベントに登録する
func (e *Event) Register(p Person) (Registration, error) {
	if e.IsClosed() {
		return Registration{}, ErrEventClosed
	}
	if e.IsPastEvent() {
		return Registration{}, ErrPastEvent
	}
	if e.IsFull() {
		return Registration{}, ErrEventFull
	}

	r := NewRegistration(p)
	for _, existing := range e.registrations {
		if existing.Equal(r) {
			return Registration{}, alreadyRegistered(p.Email())
		}
	}
	e.registrations = append(e.registrations, r)
	return r, nil
}

// Equal は自然キー（開催日と名前）のみで比較する
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Key() == other.Key()
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{heldOn=%s, name='%s', status=%s}", e.heldOn.Format(time.DateOnly), e.name, e.status)
}
