package conn

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lobby/common/log"
	"lobby/dto"
)

// Connection 一条长连接，发送都是非阻塞的
type Connection interface {
	ID() string
	RemoteAddr() string
	SendMessage(buf []byte) error
	Ping() error
	Close(code int, reason string)
}

// Handler 接收连接事件，实现方负责把事件交给单一的房间协程
type Handler interface {
	OnConnect(c Connection, identity Identity) error
	OnMessage(connID string, body []byte)
	OnPong(connID string)
	OnDisconnect(connID string)
}

// Identity 建连时从令牌或参数中得到的身份
type Identity struct {
	AccountID string
	Name      string
}

var writeWait = 10 * time.Second

type LongConnection struct {
	connID      string
	remoteAddr  string
	conn        *websocket.Conn
	worker      *Worker
	writeChan   chan []byte
	pingChan    chan struct{}
	closeChan   chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
	readTimeout time.Duration
	readLimit   int64
}

func newLongConnection(id string, conn *websocket.Conn, w *Worker, remoteAddr string) *LongConnection {
	return &LongConnection{
		connID:      id,
		remoteAddr:  remoteAddr,
		conn:        conn,
		worker:      w,
		writeChan:   make(chan []byte, w.opts.SendBuffer),
		pingChan:    make(chan struct{}, 1),
		closeChan:   make(chan struct{}),
		closeCode:   websocket.CloseNormalClosure,
		readTimeout: w.opts.ReadTimeout,
		readLimit:   w.opts.MaxMessageSize,
	}
}

func (con *LongConnection) ID() string {
	return con.connID
}

func (con *LongConnection) RemoteAddr() string {
	return con.remoteAddr
}

func (con *LongConnection) Run() {
	con.conn.SetPongHandler(con.pongHandler)
	con.worker.pumps.Add(1)
	go con.writeMessage()
	go con.readMessage()
}

func (con *LongConnection) writeMessage() {
	defer func() {
		_ = con.conn.Close()
		con.worker.pumps.Done()
	}()

	for {
		select {
		case message := <-con.writeChan:
			_ = con.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := con.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("客户端[%s] write err: %v", con.connID, err)
				con.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-con.pingChan:
			if err := con.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("客户端[%s] ping err: %v", con.connID, err)
				con.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-con.closeChan:
			msg := websocket.FormatCloseMessage(con.closeCode, con.closeReason)
			if err := con.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				log.Debug("客户端[%s] 发送关闭帧失败: %v", con.connID, err)
			}
			return
		}
	}
}

func (con *LongConnection) readMessage() {
	defer func() {
		con.Close(websocket.CloseNormalClosure, "")
		con.worker.removeClient(con)
	}()

	con.conn.SetReadLimit(con.readLimit)
	if err := con.extendDeadline(); err != nil {
		log.Error("客户端[%s] SetReadDeadline err: %v", con.connID, err)
		return
	}
	for {
		messageType, message, err := con.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("客户端[%s] 异常断开: %v", con.connID, err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if err := con.extendDeadline(); err != nil {
			return
		}
		con.worker.handler.OnMessage(con.connID, message)
	}
}

func (con *LongConnection) pongHandler(string) error {
	con.worker.handler.OnPong(con.connID)
	return con.extendDeadline()
}

// extendDeadline 读超时只是兜底，存活判断由心跳探测负责
func (con *LongConnection) extendDeadline() error {
	if con.readTimeout <= 0 {
		return con.conn.SetReadDeadline(time.Time{})
	}
	return con.conn.SetReadDeadline(time.Now().Add(con.readTimeout))
}

// SendMessage 写缓冲满时直接丢弃，不阻塞调用方
func (con *LongConnection) SendMessage(buf []byte) error {
	select {
	case <-con.closeChan:
		return dto.ErrConnectionClosed
	default:
	}

	select {
	case con.writeChan <- buf:
		return nil
	default:
		return dto.ErrSendChanFull
	}
}

// Ping 已经有一个待发送的 ping 时直接返回
func (con *LongConnection) Ping() error {
	select {
	case <-con.closeChan:
		return dto.ErrConnectionClosed
	default:
	}

	select {
	case con.pingChan <- struct{}{}:
	default:
	}
	return nil
}

func (con *LongConnection) Close(code int, reason string) {
	//确保只执行一次
	con.closeOnce.Do(func() {
		con.closeCode = code
		con.closeReason = reason
		close(con.closeChan)
		log.Debug("客户端[%s] 连接关闭 code=%d reason=%s", con.connID, code, reason)
	})
}
