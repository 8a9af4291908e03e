package conf

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Duration toml 配置中的时长字段，支持 "5s"/"2m" 写法
type Duration string

func (d Duration) Duration() time.Duration {
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

type Bootstrap struct {
	BuildVersion string    `toml:"-"`
	Debug        bool      `toml:"debug"`
	Server       Server    `toml:"server"`
	Data         Data      `toml:"data"`
	Pipeline     Pipeline  `toml:"pipeline"`
	Recording    Recording `toml:"recording"`
	Notify       Notify    `toml:"notify"`
	Camera       Camera    `toml:"camera"`
}

type Server struct {
	HTTP HTTP `toml:"http"`
}

type HTTP struct {
	Port      int    `toml:"port"`
	JwtSecret string `toml:"jwt_secret"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	// Dsn 以 postgres/mysql 前缀区分方言，否则按 sqlite 文件处理
	Dsn             string   `toml:"dsn"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Pipeline 服务端检测/跟踪管线配置
type Pipeline struct {
	DetectorURL       string   `toml:"detector_url"`       // 外部检测服务地址
	InferenceInterval int      `toml:"inference_interval"` // 每 N 帧提交一次检测任务
	MinConfidence     float32  `toml:"min_confidence"`     // 低于该置信度的结果丢弃
	StalenessWindow   Duration `toml:"staleness_window"`   // 轨迹过期窗口
	SnapshotDir       string   `toml:"snapshot_dir"`       // 事件快照存储目录
	RetentionDays     int      `toml:"retention_days"`     // 事件与快照保留天数
}

// Recording 录像编码器的固定输入/输出契约
type Recording struct {
	Disabled     bool   `toml:"disabled"`
	StorageDir   string `toml:"storage_dir"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	FPS          int    `toml:"fps"`
	SegmentTime  int    `toml:"segment_time"`  // 单个切片秒数
	PlaylistSize int    `toml:"playlist_size"` // 滚动播放列表长度
}

type Notify struct {
	Enabled    bool     `toml:"enabled"`
	WebhookURL string   `toml:"webhook_url"`
	Cooldown   Duration `toml:"cooldown"` // 同 label 两次告警的最小间隔
	Workers    int      `toml:"workers"`
	QueueSize  int      `toml:"queue_size"`
	Mqtt       Mqtt     `toml:"mqtt"`
}

type Mqtt struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	User  string `toml:"user"`
	Pass  string `toml:"pass"`
	Topic string `toml:"topic"`
}

// Camera 边缘节点配置
type Camera struct {
	ID          int    `toml:"id"`        // 信令报文中的数字摄像头编号
	OfferURL    string `toml:"offer_url"` // 服务端信令地址
	Input       string `toml:"input"`     // 设备路径或 RTSP 地址
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	FPS         int    `toml:"fps"`
	APIPort     int    `toml:"api_port"`
	JournalPath string `toml:"journal_path"` // DDIL 模式下缓存运动事件的本地日志
}

// SetupConfig 读取 toml 配置，读取失败时记录日志并以默认值继续运行
func SetupConfig(path string) *Bootstrap {
	_ = godotenv.Load()

	c := defaultBootstrap()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("config file unavailable, using defaults", "path", path, "err", err)
		return c
	}
	if err := toml.Unmarshal(data, c); err != nil {
		slog.Error("config parse failed, using defaults", "path", path, "err", err)
		return defaultBootstrap()
	}
	c.applyDefaults()
	return c
}

func defaultBootstrap() *Bootstrap {
	c := Bootstrap{}
	c.applyDefaults()
	return &c
}

func (c *Bootstrap) applyDefaults() {
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8000
	}
	if c.Data.Database.Dsn == "" {
		c.Data.Database.Dsn = "sentinel.db"
	}
	if c.Data.Database.MaxIdleConns == 0 {
		c.Data.Database.MaxIdleConns = 10
	}
	if c.Data.Database.MaxOpenConns == 0 {
		c.Data.Database.MaxOpenConns = 100
	}
	if c.Pipeline.InferenceInterval <= 0 {
		c.Pipeline.InferenceInterval = 5
	}
	if c.Pipeline.MinConfidence <= 0 {
		c.Pipeline.MinConfidence = 0.5
	}
	if c.Pipeline.StalenessWindow.Duration() <= 0 {
		c.Pipeline.StalenessWindow = "10s"
	}
	if c.Pipeline.SnapshotDir == "" {
		c.Pipeline.SnapshotDir = "configs/events"
	}
	if c.Pipeline.RetentionDays <= 0 {
		c.Pipeline.RetentionDays = 30
	}
	if c.Recording.StorageDir == "" {
		c.Recording.StorageDir = "recordings"
	}
	if c.Recording.Width == 0 {
		c.Recording.Width = 640
	}
	if c.Recording.Height == 0 {
		c.Recording.Height = 480
	}
	if c.Recording.FPS == 0 {
		c.Recording.FPS = 15
	}
	if c.Recording.SegmentTime == 0 {
		c.Recording.SegmentTime = 4
	}
	if c.Recording.PlaylistSize == 0 {
		c.Recording.PlaylistSize = 20
	}
	if c.Notify.Cooldown.Duration() <= 0 {
		c.Notify.Cooldown = "60s"
	}
	if c.Notify.Workers <= 0 {
		c.Notify.Workers = 2
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 16
	}
	if c.Camera.ID <= 0 {
		c.Camera.ID = 1
	}
	if c.Camera.OfferURL == "" {
		c.Camera.OfferURL = "http://localhost:8000/offer"
	}
	if c.Camera.Width == 0 {
		c.Camera.Width = 320
	}
	if c.Camera.Height == 0 {
		c.Camera.Height = 240
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 15
	}
	if c.Camera.APIPort == 0 {
		c.Camera.APIPort = 8081
	}
	if c.Camera.JournalPath == "" {
		c.Camera.JournalPath = "pending.txt"
	}
	if c.Camera.Input == "" {
		c.Camera.Input = "/dev/video0"
	}
}

// Addr 返回 host:port 形式的监听地址
func (h HTTP) Addr() string { return fmt.Sprintf(":%d", h.Port) }
