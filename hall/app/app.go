package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lobby/common/config"
	"lobby/common/http"
	"lobby/common/log"
	"lobby/core/container"
	"lobby/hall/api"
)

// Run 1.组装依赖 2.启动 lobby 协程和事件发布 3.启动 HTTP/websocket 服务 4.优雅停止
func Run(ctx context.Context, conf *config.HallConfiguration) error {
	c, err := container.NewHallContainer(ctx, conf)
	if err != nil {
		return err
	}

	publisherCtx, stopPublisher := context.WithCancel(context.Background())
	go c.GetPublisher().Run(publisherCtx)

	lobbyWorker := c.GetLobby()
	go lobbyWorker.Run(context.Background())

	server := http.NewHttpServer(
		http.WithPort(conf.HttpPort),
		http.WithMode(conf.LogConf.Level),
	)
	api.RegisterRoutes(server, api.New(conf.ID, conf.MaxConnections, lobbyWorker, c.GetTransport()))

	errCh := make(chan error, 1)
	go func() {
		log.Info("启动 HTTP 服务器，端口: %d", conf.HttpPort)
		errCh <- server.Start()
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP 服务器关闭失败: %v", err)
		} else {
			log.Info("HTTP 服务器已优雅关闭")
		}
		// 先停 lobby，房间删除事件进入缓冲后再停发布协程
		lobbyWorker.Stop()
		// 等写协程把关闭帧发完，否则进程退出时客户端只能看到 1006
		if err := c.GetTransport().Wait(shutdownCtx); err != nil {
			log.Warn("连接关闭帧未能在超时前全部写出: %v", err)
		}
		stopPublisher()
		select {
		case <-c.GetPublisher().Done():
		case <-shutdownCtx.Done():
			log.Warn("事件发布未能在超时前完成")
		}
		if err := c.Close(); err != nil {
			log.Error("容器资源关闭失败: %v", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case err := <-errCh:
			stop()
			return err
		case s := <-sig:
			switch s {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				stop()
				log.Info("中断信号，服务停止")
				return nil
			case syscall.SIGHUP:
				stop()
				log.Info("挂起信号，服务停止")
				return nil
			default:
				return nil
			}
		}
	}
}
