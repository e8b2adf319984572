package api

import (
	"time"

	"lobby/common/http"
	"lobby/framework/conn"
	"lobby/framework/lobby"
)

const Version = "1.0.0"

// API hall 对外的 HTTP 接口，只读查询都经过 lobby 协程
type API struct {
	nodeID         string
	maxConnections int
	lobby          *lobby.Worker
	transport      *conn.Worker
	started        time.Time
}

func New(nodeID string, maxConnections int, lobbyWorker *lobby.Worker, transport *conn.Worker) *API {
	return &API{
		nodeID:         nodeID,
		maxConnections: maxConnections,
		lobby:          lobbyWorker,
		transport:      transport,
		started:        time.Now(),
	}
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(server *http.HttpServer, api *API) {
	server.GET("/ping", api.PingHandler)
	server.GET("/health", api.HealthHandler)
	server.GET("/info", api.InfoHandler)
	server.Handle("GET", "/ws", api.transport)

	// API v1 路由组
	v1 := server.Group("/api/v1", http.CorsMiddleware())
	{
		v1.GET("/rooms", api.ListRoomsHandler)
		v1.GET("/rooms/:roomId", api.GetRoomHandler)
	}
}
