// Package handlers 提供按业务域划分的 WebSocket 消息处理器：
// 通用操作（心跳应答、房间进出、连接信息）、IoT 设备通信、
// 打印项目进度推送与系统级通知。每组处理器通过 Register
// 批量挂载到 ws.Dispatcher 的路由表。
package handlers

import "time"

// isoNow 返回 ISO-8601 时间戳，与出站帧时间格式保持一致
func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
