package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogConfig(dir, level string) LogConfig {
	return LogConfig{
		Level:      level,
		LogDir:     dir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Quiet:      true,
	}
}

func TestInitLogger(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "logs")

	if err := InitLogger(testLogConfig(tempDir, "debug")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Debugf("测试%s日志", "调试")

	mainLogPath := filepath.Join(tempDir, MainLogFile)
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("主日志文件未创建: %v", err)
	}
	if !strings.Contains(string(content), "测试调试日志") {
		t.Error("debug级别下应写入调试日志")
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(testLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Infof("格式化信息日志: %s", "可见")
	Debugf("格式化调试日志: %s", "不可见")

	content, err := os.ReadFile(filepath.Join(tempDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), "可见") {
		t.Error("info日志未写入")
	}
	if strings.Contains(string(content), "不可见") {
		t.Error("info级别下不应写入调试日志")
	}
}

func TestErrorLogFiltered(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(testLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Warnf("页面抓取失败: %s", "https://example.com/a")
	Errorf("渲染失败: %d", 500)

	content, err := os.ReadFile(filepath.Join(tempDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if !strings.Contains(string(content), "渲染失败") {
		t.Error("错误日志应包含error级别日志")
	}
	if strings.Contains(string(content), "页面抓取失败") {
		t.Error("错误日志不应包含warn级别日志")
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := testLogConfig(t.TempDir(), "info")
	cfg.Quiet = false
	cfg.Console = &buf

	if err := InitLogger(cfg); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("这是一条中文日志消息")
	if !strings.Contains(buf.String(), "这是一条中文日志消息") {
		t.Errorf("控制台输出缺少日志: %q", buf.String())
	}
}

func TestWithRun(t *testing.T) {
	tempDir := t.TempDir()
	if err := InitLogger(testLogConfig(tempDir, "info")); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	restore := WithRun("run-1234")
	Info("任务内日志")
	restore()
	Info("任务外日志")

	content, err := os.ReadFile(filepath.Join(tempDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		hasRun := strings.Contains(line, `"run":"run-1234"`)
		switch {
		case strings.Contains(line, "任务内日志") && !hasRun:
			t.Errorf("任务内日志缺少run字段: %s", line)
		case strings.Contains(line, "任务外日志") && hasRun:
			t.Errorf("恢复后不应带run字段: %s", line)
		}
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"不需要截断", "abc", 10, "abc"},
		{"ASCII截断", "abcdef", 3, "abc"},
		{"不切断多字节字符", "中文", 4, "中"},
		{"max为0", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}
