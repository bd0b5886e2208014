package ws

import (
	"time"

	"go.uber.org/zap"
)

// heartbeatLoop 每连接一个的存活监督任务，由 Connect 启动、
// 由连接记录持有的 cancel 在 Disconnect 中同步取消。
// 固定间隔下发 heartbeat 探测帧；任一探测写失败立即判定对端失联，
// 活跃窗口超过 HeartbeatTimeout 同样触发 Disconnect。
func (r *Registry) heartbeatLoop(c *Connection) {
	ticker := time.NewTicker(r.conf.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if time.Since(c.LastActivity()) > r.conf.HeartbeatTimeout {
				r.log.Info("heartbeat window expired",
					zap.String("connection_id", c.ID),
					zap.Time("last_activity", c.LastActivity()))
				r.Disconnect(c.ID)
				return
			}
			if err := c.write(NewHeartbeatFrame()); err != nil {
				r.log.Info("heartbeat probe failed",
					zap.String("connection_id", c.ID), zap.Error(err))
				r.Disconnect(c.ID)
				return
			}
		}
	}
}
