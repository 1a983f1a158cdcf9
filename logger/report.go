package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsWriter   int64
	errorsReader   int64
	warnsWriter    int64
	warnsReader    int64
	recordsWritten int64
	recordsRead    int64
	filesArchived  int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "writer") || strings.Contains(component, "recorder") {
		atomic.AddInt64(&warnsWriter, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsReader, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "writer") || strings.Contains(component, "recorder") {
		atomic.AddInt64(&errorsWriter, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsReader, 1)
	}
}

// IncrementRecordsWritten accounts records appended to SDB files.
func IncrementRecordsWritten(n int) {
	atomic.AddInt64(&recordsWritten, int64(n))
	recordChannel("sdb_write", n)
}

// IncrementRecordsRead accounts records decoded from SDB files.
func IncrementRecordsRead(n int) {
	atomic.AddInt64(&recordsRead, int64(n))
	recordChannel("sdb_read", n)
}

// IncrementFilesArchived accounts files uploaded to remote storage.
func IncrementFilesArchived(size int64) {
	atomic.AddInt64(&filesArchived, 1)
	recordChannel("archive", int(size))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}
	diskMB := int64(0)
	if diskStats != nil {
		diskMB = int64(diskStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_writer":   atomic.LoadInt64(&errorsWriter),
		"errors_reader":   atomic.LoadInt64(&errorsReader),
		"warns_writer":    atomic.LoadInt64(&warnsWriter),
		"warns_reader":    atomic.LoadInt64(&warnsReader),
		"records_written": atomic.LoadInt64(&recordsWritten),
		"records_read":    atomic.LoadInt64(&recordsRead),
		"files_archived":  atomic.LoadInt64(&filesArchived),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       memMB,
		"disk_mb":         diskMB,
		"channels":        channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memMB))},
		{MetricName: aws.String("RecordsWritten"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&recordsWritten)))},
		{MetricName: aws.String("RecordsRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&recordsRead)))},
		{MetricName: aws.String("FilesArchived"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&filesArchived)))},
	}
	publishMetrics(context.Background(), data)
}
