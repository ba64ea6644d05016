package api

import (
	"net/url"
	"time"

	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
)

// EventsPath はイベント一覧のパス
const EventsPath = "/api/events"

// EventPath はイベントのパスを返す（例: /api/events/2018-10-31/Halloween）
func EventPath(key event.Key) string {
	return EventsPath + "/" + key.HeldOn.Format(time.DateOnly) + "/" + url.PathEscape(key.Name)
}

// RegistrationsPath はイベントの登録一覧のパスを返す
func RegistrationsPath(key event.Key) string {
	return EventPath(key) + "/registrations"
}
