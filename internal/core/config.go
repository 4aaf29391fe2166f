package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitemindmap/internal/config"
	"github.com/RecoveryAshes/sitemindmap/internal/crawlers"
	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"github.com/RecoveryAshes/sitemindmap/internal/render"
	"github.com/RecoveryAshes/sitemindmap/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,如 SITEMINDMAP_CRAWL_MAX_PAGES
const EnvPrefix = "SITEMINDMAP"

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Robots  RobotsConfig       `mapstructure:"robots"`
	Diagram DiagramConfig      `mapstructure:"diagram"`
	Render  RenderConfig       `mapstructure:"render"`
	Output  OutputConfig       `mapstructure:"output"`
	Logging LoggingConfig      `mapstructure:"logging"`
	HTTP    HTTPConfig         `mapstructure:"http"`
}

// RobotsConfig robots.txt配置
type RobotsConfig struct {
	UserAgent   string `mapstructure:"user_agent" validate:"required"`   // 匹配的用户代理组
	DenyOnError bool   `mapstructure:"deny_on_error"`                    // 获取失败时拒绝
	Timeout     int    `mapstructure:"timeout" validate:"min=1,max=120"` // 秒
}

// DiagramConfig 图表配置
type DiagramConfig struct {
	Style     string `mapstructure:"style" validate:"oneof=flat tree"`
	ChunkSize int    `mapstructure:"chunk_size" validate:"min=1,max=1000"`
	RootName  string `mapstructure:"root_name"` // 根节点文字,默认为种子URL
}

// RenderConfig 渲染配置
type RenderConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Server      string `mapstructure:"server" validate:"required,url"`
	Format      string `mapstructure:"format" validate:"oneof=svg png txt"`
	Concurrency int    `mapstructure:"concurrency" validate:"min=1,max=16"`
	Timeout     int    `mapstructure:"timeout" validate:"min=1,max=600"` // 秒
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir         string `mapstructure:"base_dir" validate:"required"`
	Prefix          string `mapstructure:"prefix" validate:"required,excludesall=/"`
	ExportStructure bool   `mapstructure:"export_structure"`
	ExportFormat    string `mapstructure:"export_format" validate:"oneof=markdown json yaml"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// HTTPConfig 请求头配置,优先级介于默认值和命令行之间
type HTTPConfig struct {
	Headers map[string]string `mapstructure:"headers"`
}

// LoadConfig 加载配置文件,configPath为空时在默认位置搜索,找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if err := config.ValidateFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(config.XDGConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("已加载配置文件: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	return &cfg, nil
}

// DefaultConfig 只包含默认值的配置
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// 默认值都是基本类型,不会解析失败
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.max_pages", 100)
	v.SetDefault("crawl.delay", 0.6)
	v.SetDefault("crawl.workers", 1)
	v.SetDefault("crawl.timeout", 30)
	v.SetDefault("crawl.mode", string(models.ModeStatic))
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.include_hidden_fields", false)
	v.SetDefault("crawl.max_tabs_limit", 8)
	v.SetDefault("crawl.insecure_skip_verify", false)
	v.SetDefault("crawl.safety_reserve_memory", 1024)

	// robots.txt
	v.SetDefault("robots.user_agent", crawlers.DefaultRobotsAgent)
	v.SetDefault("robots.deny_on_error", crawlers.DefaultDenyOnError)
	v.SetDefault("robots.timeout", 15)

	// 图表
	v.SetDefault("diagram.style", "flat")
	v.SetDefault("diagram.chunk_size", 20)
	v.SetDefault("diagram.root_name", "")

	// 渲染
	v.SetDefault("render.enabled", true)
	v.SetDefault("render.server", render.DefaultServer)
	v.SetDefault("render.format", render.DefaultFormat)
	v.SetDefault("render.concurrency", render.DefaultConcurrency)
	v.SetDefault("render.timeout", 30)

	// 输出
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.prefix", "mindmap")
	v.SetDefault("output.export_structure", false)
	v.SetDefault("output.export_format", "markdown")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("http.headers", map[string]string{})
}

// Validate 校验全部配置项
func (c *Config) Validate() error {
	if err := models.Validator().Struct(c); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	return nil
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig(quiet bool) utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		Quiet:      quiet,
	}
}

// RobotsSettings 转换为robots检查器配置
func (c *Config) RobotsSettings() crawlers.RobotsConfig {
	return crawlers.RobotsConfig{
		UserAgent:   c.Robots.UserAgent,
		DenyOnError: c.Robots.DenyOnError,
		Timeout:     time.Duration(c.Robots.Timeout) * time.Second,
	}
}

// RenderSettings 转换为渲染客户端配置
func (c *Config) RenderSettings(userAgent string) render.Config {
	return render.Config{
		Server:      c.Render.Server,
		Format:      c.Render.Format,
		Concurrency: c.Render.Concurrency,
		Timeout:     time.Duration(c.Render.Timeout) * time.Second,
		UserAgent:   userAgent,
	}
}

// Overrides 命令行参数,nil表示未指定(保持配置文件中的值)
type Overrides struct {
	MaxPages      *int
	Delay         *float64
	Workers       *int
	Timeout       *int
	Mode          *string
	Headless      *bool
	IncludeHidden *bool
	Insecure      *bool

	Style     *string
	ChunkSize *int
	RootName  *string

	Server   *string
	Format   *string
	NoRender bool

	OutputDir    *string
	Prefix       *string
	ExportMD     bool
	ExportFormat *string

	LogLevel *string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o Overrides) {
	if o.MaxPages != nil {
		c.Crawl.MaxPages = *o.MaxPages
	}
	if o.Delay != nil {
		c.Crawl.Delay = *o.Delay
	}
	if o.Workers != nil {
		c.Crawl.Workers = *o.Workers
	}
	if o.Timeout != nil {
		c.Crawl.Timeout = *o.Timeout
	}
	if o.Mode != nil {
		c.Crawl.Mode = models.CrawlMode(*o.Mode)
	}
	if o.Headless != nil {
		c.Crawl.Headless = *o.Headless
	}
	if o.IncludeHidden != nil {
		c.Crawl.IncludeHiddenFields = *o.IncludeHidden
	}
	if o.Insecure != nil {
		c.Crawl.InsecureSkipVerify = *o.Insecure
	}

	if o.Style != nil {
		c.Diagram.Style = *o.Style
	}
	if o.ChunkSize != nil {
		c.Diagram.ChunkSize = *o.ChunkSize
	}
	if o.RootName != nil {
		c.Diagram.RootName = *o.RootName
	}

	if o.Server != nil {
		c.Render.Server = *o.Server
	}
	if o.Format != nil {
		c.Render.Format = *o.Format
	}
	if o.NoRender {
		c.Render.Enabled = false
	}

	if o.OutputDir != nil {
		c.Output.BaseDir = *o.OutputDir
	}
	if o.Prefix != nil {
		c.Output.Prefix = *o.Prefix
	}
	if o.ExportMD {
		c.Output.ExportStructure = true
	}
	if o.ExportFormat != nil {
		c.Output.ExportStructure = true
		c.Output.ExportFormat = *o.ExportFormat
	}

	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
}
