// Package output 导出站点结构(Markmap大纲、JSON、YAML)
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/sitemindmap/internal/models"
	"gopkg.in/yaml.v3"
)

// Format 导出格式
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// StructureFile 导出文件名(不含扩展名)
const StructureFile = "structure"

// ParseFormat 解析导出格式,md/yml视为别名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("不支持的导出格式: %s", s)
	}
}

// Extension 文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "md"
	}
}

// Structure JSON/YAML导出的文档结构
type Structure struct {
	Root  string               `json:"root" yaml:"root"`
	Pages []*models.PageRecord `json:"pages" yaml:"pages"`
}

// NewStructure 按URL排序收集全部页面
func NewStructure(graph *models.SiteGraph, root string) Structure {
	return Structure{Root: root, Pages: graph.Pages()}
}

// Write 以指定格式写出站点结构
func Write(w io.Writer, graph *models.SiteGraph, root string, format Format) error {
	switch format {
	case FormatMarkdown:
		return WriteMarkdown(w, graph, root)
	case FormatJSON:
		return WriteJSON(w, NewStructure(graph, root))
	case FormatYAML:
		return WriteYAML(w, NewStructure(graph, root))
	default:
		return fmt.Errorf("不支持的导出格式: %s", format)
	}
}

// WriteJSON 缩进两个空格的JSON
func WriteJSON(w io.Writer, s Structure) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(data); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteYAML 缩进两个空格的YAML
func WriteYAML(w io.Writer, s Structure) error {
	bw := bufio.NewWriter(w)
	encoder := yaml.NewEncoder(bw)
	encoder.SetIndent(2)

	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("序列化YAML失败: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// Export 写入 <dir>/structure.<ext>,返回文件路径
func Export(graph *models.SiteGraph, root, dir string, format Format) (string, error) {
	switch format {
	case FormatMarkdown, FormatJSON, FormatYAML:
	default:
		return "", fmt.Errorf("不支持的导出格式: %s", format)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(dir, StructureFile+"."+format.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建导出文件失败: %w", err)
	}

	if err := Write(f, graph, root, format); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
