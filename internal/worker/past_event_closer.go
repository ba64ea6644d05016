package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-simple-meetup/internal/pkg/logger"
)

// EventCloser は開催日を過ぎたイベントを締め切るインターフェース
type EventCloser interface {
	ClosePastEvents(ctx context.Context) (int, error)
}

// PastEventCloser は開催日を過ぎた受付中イベントを定期的に締め切るワーカー
type PastEventCloser struct {
	eventService EventCloser
	interval     time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewPastEventCloser は新しいワーカーを作成
func NewPastEventCloser(es EventCloser, interval time.Duration) *PastEventCloser {
	return &PastEventCloser{
		eventService: es,
		interval:     interval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start はワーカーを開始する（起動直後に一度実行し、以降は interval ごと）
// ctx のキャンセルか Stop で戻る
func (c *PastEventCloser) Start(ctx context.Context) {
	logger.Info("過去イベント締め切りワーカー開始", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	c.closePastEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("過去イベント締め切りワーカー停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			logger.Info("過去イベント締め切りワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			c.closePastEvents(ctx)
		}
	}
}

// Stop はワーカーを停止し、終了を待つ
func (c *PastEventCloser) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

func (c *PastEventCloser) closePastEvents(ctx context.Context) {
	log := logger.Get()

	count, err := c.eventService.ClosePastEvents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error("過去イベントの締め切りに失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("過去イベントを締め切りました", zap.Int("count", count))
	} else {
		log.Debug("締め切るイベントなし")
	}
}
