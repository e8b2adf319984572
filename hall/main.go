package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lobby/common/config"
	"lobby/common/log"
	"lobby/common/metrics"
	"lobby/hall/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "hall",
	Short: "hall 房间协调服务",
	Long:  `hall 房间协调服务：玩家连接、建房加入、房主迁移、房间内消息转发`,
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := config.Load(configFile)
		if err != nil {
			log.Fatal("文件配置发生错误：%v", err)
		}
		log.InitLog(conf.ID, conf.LogConf.Level)
		log.Info("配置文件: %s, 节点: %s, 端口: %d, hall: %+v", configFile, conf.ID, conf.HttpPort, conf.HallConf)

		// 只有日志级别支持热更新，其余配置需要重启
		if err := config.Watch(configFile, func(next *config.HallConfiguration) {
			log.SetLevel(next.LogConf.Level)
			log.Info("配置文件已变更，日志级别: %s", next.LogConf.Level)
		}); err != nil {
			log.Warn("监听配置文件失败: %v", err)
		}

		if conf.MetricPort > 0 {
			go func() {
				log.Info("启动监控..., URL: http://localhost:%d/debug/statsviz/", conf.MetricPort)
				if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", conf.MetricPort)); err != nil {
					log.Error("监控服务退出: %v", err)
				}
			}()
		}

		if err := app.Run(context.Background(), conf); err != nil {
			log.Error("发生异常: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "configFile", "resource/application.yml", "resource file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}
