package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// 广播扇出：对目标 ID 的快照逐个投递，慢目标或死目标不会阻塞其余
// 目标的投递，失败按目标隔离并走 SendTo 的自愈路径。

// Broadcast 向 ids 快照中除 exclude 外的每个连接投递 v，返回成功数。
// 扇出使用固定大小 worker 池并受 BroadcastTimeout 总预算约束，
// 预算耗尽时未触达的目标计为失败。
func (r *Registry) Broadcast(ids []string, v any, exclude string) int {
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Error("broadcast marshal failed", zap.Error(err))
		return 0
	}
	return r.broadcastRaw(ids, data, exclude)
}

// BroadcastAll 向当前全部连接广播
func (r *Registry) BroadcastAll(v any, exclude string) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	return r.Broadcast(ids, v, exclude)
}

// SendToRoom 向房间成员快照广播
func (r *Registry) SendToRoom(room string, v any, exclude string) int {
	return r.Broadcast(r.Members(room), v, exclude)
}

func (r *Registry) broadcastRaw(ids []string, data []byte, exclude string) int {
	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return 0
	}

	workers := r.conf.BroadcastWorkers
	if len(targets) < workers {
		workers = len(targets)
	}

	jobs := make(chan string, len(targets))
	for _, id := range targets {
		jobs <- id
	}
	close(jobs)

	ctx, cancel := context.WithTimeout(context.Background(), r.conf.BroadcastTimeout)
	defer cancel()

	var sent atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case id, ok := <-jobs:
					if !ok {
						return
					}
					if r.sendRaw(id, data) {
						sent.Add(1)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("broadcast budget exhausted", zap.Int("targets", len(targets)))
	}
	return int(sent.Load())
}
