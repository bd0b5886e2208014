package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server WebSocket 接入层：负责 HTTP 升级、每连接读循环以及
// 面向运维的管理端点。业务语义全部经由 Registry / Dispatcher。
type Server struct {
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   *Upgrader
	log        *zap.Logger
}

// NewServer 创建接入层
func NewServer(registry *Registry, dispatcher *Dispatcher) *Server {
	return &Server{
		registry:   registry,
		dispatcher: dispatcher,
		upgrader:   NewUpgrader(registry.conf.Upgrader),
		log:        registry.log,
	}
}

// RegisterRoutes 挂载 /ws 路由
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connect", s.handleConnect)

	rg.GET("/status", s.handleStatus)
	rg.GET("/health", s.handleHealth)
	rg.GET("/rooms", s.handleListRooms)
	rg.POST("/broadcast", s.handleBroadcast)
	rg.POST("/rooms/:room/broadcast", s.handleRoomBroadcast)
	rg.POST("/users/:user_id/notify", s.handleUserNotify)
	rg.POST("/devices/:device_id/command", s.handleDeviceCommand)
}

// handleConnect 主连接端点。认证在到达这里之前完成，
// user_id / device_id 作为可信关联参数由查询串带入。
func (s *Server) handleConnect(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request)
	if err != nil {
		// Upgrade 失败时 gorilla 已写回 HTTP 错误
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	meta := Metadata{
		UserID:   c.Query("user_id"),
		DeviceID: c.Query("device_id"),
	}
	id, err := s.registry.Connect(conn, meta)
	if err != nil {
		// 容量上限或注册中心已关闭：握手已完成，只能关闭连接
		s.log.Warn("connection rejected", zap.Error(err))
		_ = conn.Close()
		return
	}

	s.readLoop(c.Request.Context(), conn, id)
}

// readLoop 每连接读循环：Disconnect 关闭 socket 后 ReadMessage 返回错误，
// 循环随之退出，因此 Disconnect 是唯一的取消点。
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id string) {
	defer s.registry.Disconnect(id)

	conn.SetReadLimit(s.registry.conf.MaxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.registry.Touch(id)
		s.dispatcher.Dispatch(ctx, id, data)
	}
}

// handleStatus 服务状态
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"websocket": s.registry.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth 健康检查
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"stats":  s.registry.Stats(),
		"features": []string{
			"real_time_communication",
			"device_monitoring",
			"project_updates",
			"system_notifications",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListRooms 活跃房间列表
func (s *Server) handleListRooms(c *gin.Context) {
	rooms := make(gin.H)
	for _, room := range s.registry.ListRooms() {
		members := s.registry.Members(room)
		rooms[room] = gin.H{
			"member_count": len(members),
			"members":      members,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"rooms":       rooms,
		"total_rooms": len(rooms),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// broadcastBody 管理端广播请求体，沿用线格式 {"type","data"}
type broadcastBody struct {
	Type string `json:"type" binding:"required"`
	Data any    `json:"data"`
}

// handleBroadcast 全局广播
func (s *Server) handleBroadcast(c *gin.Context) {
	var body broadcastBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	sent := s.registry.BroadcastAll(&OutFrame{Type: body.Type, Data: body.Data}, "")
	c.JSON(http.StatusOK, gin.H{
		"status":    "broadcast_sent",
		"sent_to":   sent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRoomBroadcast 房间广播
func (s *Server) handleRoomBroadcast(c *gin.Context) {
	room := c.Param("room")
	var body broadcastBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	sent := s.registry.SendToRoom(room, &OutFrame{Type: body.Type, Data: body.Data}, "")
	c.JSON(http.StatusOK, gin.H{
		"room":      room,
		"sent_to":   sent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUserNotify 定向通知用户全部连接
func (s *Server) handleUserNotify(c *gin.Context) {
	userID := c.Param("user_id")
	var notification map[string]any
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification body"})
		return
	}
	sent := s.registry.SendToUser(userID, &OutFrame{
		Type: "user_notification",
		Data: notification,
	})
	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"sent_to":   sent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// deviceCommandBody 设备命令请求体
type deviceCommandBody struct {
	Command    string         `json:"command" binding:"required"`
	Parameters map[string]any `json:"parameters"`
}

// handleDeviceCommand 向设备全部连接下发命令
func (s *Server) handleDeviceCommand(c *gin.Context) {
	deviceID := c.Param("device_id")
	var body deviceCommandBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}
	sent := s.registry.SendToDevice(deviceID, &OutFrame{
		Type: "device_command",
		Data: gin.H{
			"command":    body.Command,
			"parameters": body.Parameters,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	})
	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"command":   body.Command,
		"sent_to":   sent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
