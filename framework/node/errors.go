package node

import "errors"

// 远程通信错误
var (
	ErrNotConnected  = errors.New("未连接到远程服务")
	ErrPublishFailed = errors.New("发布消息失败")
	ErrQueueFull     = errors.New("事件队列已满")
)
