package clock

import "time"

// Clock は現在時刻の取得元を表す
// 本番ではシステム時計、テストでは固定時刻を注入する
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System はシステム時計を返す
func System() Clock {
	return systemClock{}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// Fixed は常に同じ時刻を返す時計を作成する
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

// DateOf は時刻を暦日（UTCの0時）に正規化する
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today は時計から見た今日の日付を返す
func Today(c Clock) time.Time {
	if c == nil {
		c = System()
	}
	return DateOf(c.Now())
}
