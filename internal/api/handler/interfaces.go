package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	GetEvent(ctx context.Context, heldOn time.Time, name string) (*event.Event, error)
	GetOpenEvents(ctx context.Context) ([]*event.Event, error)
	CreateNewEvent(ctx context.Context, candidate *event.Event) (*event.Event, error)
	RegisterFor(ctx context.Context, key event.Key, p event.Person) (event.Registration, error)
	CloseEvent(ctx context.Context, key event.Key) (*event.Event, error)
}
