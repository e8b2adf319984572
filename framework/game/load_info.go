package game

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"lobby/common/log"
)

// LoadInfo 负载信息，/health 接口展示
type LoadInfo struct {
	RoomCount       int     `json:"rooms"`
	PlayerCount     int     `json:"players"`
	ConnectionCount int     `json:"connections"`
	CPUUsage        float64 `json:"cpu"` // CPU 使用率（0-100）
	MemUsage        float64 `json:"mem"` // 内存使用率（0-100）
	Score           float64 `json:"score"`
}

// CalculateLoad 计算综合负载评分
// 权重：CPU 30%、内存 20%、房间数 25%、连接数 25%，越小越空闲
func (li *LoadInfo) CalculateLoad(maxConnections int) float64 {
	if maxConnections <= 0 {
		maxConnections = 1
	}
	normalizedRooms := min(float64(li.RoomCount)/float64(maxConnections), 1.0)
	normalizedConns := min(float64(li.ConnectionCount)/float64(maxConnections), 1.0)

	return li.CPUUsage*0.3 + li.MemUsage*0.2 + normalizedRooms*100*0.25 + normalizedConns*100*0.25
}

// SampleSystem 采集 CPU 和内存，失败时对应值保持 0
func (li *LoadInfo) SampleSystem() {
	if percents, err := cpu.Percent(0, false); err != nil {
		log.Debug("采集 CPU 使用率失败: %v", err)
	} else if len(percents) > 0 {
		li.CPUUsage = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Debug("采集内存使用率失败: %v", err)
	} else {
		li.MemUsage = vm.UsedPercent
	}
}
