package conn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lobby/common/jwts"
	"lobby/common/log"
	"lobby/common/utils"
)

var errMissingToken = errors.New("missing token")

type WorkerOptions struct {
	MaxConnections int
	SendBuffer     int
	MaxMessageSize int64
	ReadTimeout    time.Duration
	JwtSecret      string
	RequireToken   bool
	RateLimiter    *utils.RateLimiter // 为空时不限流
}

/*
	传输层职责：
	1. 升级 websocket，鉴权、限流、连接数上限
	2. 每条连接一个读协程一个写协程，读到的消息按顺序交给 Handler
	3. 不持有任何房间状态，连接注册表归 Handler 所有
*/

type Worker struct {
	handler  Handler
	opts     WorkerOptions
	upgrader websocket.Upgrader
	pumps    sync.WaitGroup // 每条连接的写协程，关闭帧由它发出
	stats    struct {
		currentConnections int32
		accepted           int64
		rejected           int64
	}
}

func NewWorker(handler Handler, opts WorkerOptions) *Worker {
	return &Worker{
		handler: handler,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (w *Worker) ServeHTTP(writer http.ResponseWriter, r *http.Request) {
	identity, err := w.identifyUser(r)
	if err != nil {
		atomic.AddInt64(&w.stats.rejected, 1)
		http.Error(writer, "unauthorized", http.StatusUnauthorized)
		log.Warn("连接鉴权失败 remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	if w.opts.RateLimiter != nil && !w.opts.RateLimiter.Allow() {
		atomic.AddInt64(&w.stats.rejected, 1)
		http.Error(writer, "Too many connections", http.StatusTooManyRequests)
		log.Warn("连接速率限流 exceeded from %s", r.RemoteAddr)
		return
	}
	if atomic.AddInt32(&w.stats.currentConnections, 1) > int32(w.opts.MaxConnections) {
		atomic.AddInt32(&w.stats.currentConnections, -1)
		atomic.AddInt64(&w.stats.rejected, 1)
		http.Error(writer, "Server is at capacity", http.StatusServiceUnavailable)
		log.Warn("连接达到阈值 %s", r.RemoteAddr)
		return
	}

	writer.Header().Add("Server", "lobby-hall")
	ws, err := w.upgrader.Upgrade(writer, r, nil)
	if err != nil {
		// Upgrade 失败时已经写回了 HTTP 错误
		atomic.AddInt32(&w.stats.currentConnections, -1)
		log.Warn("websocket 升级失败 remote=%s err=%v", r.RemoteAddr, err)
		return
	}

	client := newLongConnection(uuid.New().String(), ws, w, r.RemoteAddr)
	if err := w.handler.OnConnect(client, identity); err != nil {
		atomic.AddInt32(&w.stats.currentConnections, -1)
		log.Warn("客户端[%s] 注册失败: %v", client.connID, err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server unavailable")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	atomic.AddInt64(&w.stats.accepted, 1)
	client.Run()
	log.Debug("WebSocket connection established: cid=%s account=%s remote=%s", client.connID, identity.AccountID, r.RemoteAddr)
}

// identifyUser 令牌可选，配置了 requireToken 时必须携带
func (w *Worker) identifyUser(r *http.Request) (Identity, error) {
	identity := Identity{Name: strings.TrimSpace(r.URL.Query().Get("name"))}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" || w.opts.JwtSecret == "" {
		if w.opts.RequireToken {
			return Identity{}, errMissingToken
		}
		return identity, nil
	}

	claims, err := jwts.ParseToken(token, w.opts.JwtSecret)
	if err != nil {
		return Identity{}, err
	}
	identity.AccountID = claims.UserID
	if identity.Name == "" {
		identity.Name = claims.Name
	}
	return identity, nil
}

func (w *Worker) removeClient(con *LongConnection) {
	atomic.AddInt32(&w.stats.currentConnections, -1)
	w.handler.OnDisconnect(con.connID)
}

// Wait 等待所有写协程退出，停服时保证关闭帧已经写出
func (w *Worker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 当前连接数、累计接入数、累计拒绝数
func (w *Worker) Stats() (current int32, accepted, rejected int64) {
	return atomic.LoadInt32(&w.stats.currentConnections),
		atomic.LoadInt64(&w.stats.accepted),
		atomic.LoadInt64(&w.stats.rejected)
}
