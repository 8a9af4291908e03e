package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 没有 GPS 时使用的占位坐标
const (
	cotDefaultLat = "34.0522"
	cotDefaultLon = "-118.2437"
)

// GenerateDetectionCoT 为一条检测生成 Cursor-on-Target XML
// 供 TAK 类态势系统消费，五分钟后过期
func GenerateDetectionCoT(label string, conf float32) string {
	cotType := "a-u-G"
	if label == "person" {
		cotType = "a-h-G"
	}
	now := time.Now().UTC()
	timeStr := now.Format("2006-01-02T15:04:05Z")
	staleStr := now.Add(5 * time.Minute).Format("2006-01-02T15:04:05Z")

	return fmt.Sprintf(`<event version="2.0" uid="%s" type="%s" time="%s" start="%s" stale="%s" how="m-g">
    <point lat="%s" lon="%s" hae="0" ce="10" le="10"/>
    <detail>
        <contact callsign="%s"/>
        <remarks>Detected %s with confidence %.2f</remarks>
    </detail>
</event>`,
		uuid.NewString(), cotType, timeStr, timeStr, staleStr,
		cotDefaultLat, cotDefaultLon, label, label, conf)
}
