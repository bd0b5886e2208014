// Package ws implements the real-time connection and messaging broker for
// the podprint platform.
//
// # Features
//
//   - Central connection registry with user/device/room indices
//   - Implicit room lifecycle with join/leave membership events
//   - Explicit message-type dispatch table with panic isolation
//   - Per-connection supervised heartbeat with self-healing disconnect
//   - Snapshot-based broadcast fan-out with worker pool and budget
//   - Derived statistics with a monotonic delivery counter
//
// # Basic Usage
//
// Create a registry, register domain handlers and mount the transport:
//
//	registry, err := ws.NewRegistry(
//	    ws.WithMaxConnections(10000),
//	    ws.WithHeartbeatInterval(30 * time.Second),
//	    ws.WithLogger(log),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dispatcher := ws.NewDispatcher(registry)
//	dispatcher.Register("ping", func(ctx context.Context, connID string, data json.RawMessage) error {
//	    registry.SendTo(connID, ws.NewSuccessFrame("pong", nil))
//	    return nil
//	})
//
//	server := ws.NewServer(registry, dispatcher)
//	server.RegisterRoutes(engine.Group("/ws"))
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	registry.Shutdown(ctx)
//
// The registry is the sole owner of all connection and group state. Domain
// handlers never touch sockets directly; they reply and fan out through the
// registry's public operations (SendTo, SendToUser, SendToDevice, JoinRoom,
// LeaveRoom, Broadcast).
package ws
