package xpipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/xmeter/pkg/metering/xdomain"
)

// Format 配置文件格式
type Format string

// 支持的配置格式
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// configSuffix 环境配置文件名后缀，完整文件名为 <domain>-metering.<ext>
const configSuffix = "-metering"

// LoadConfig 从文件加载配置，格式由扩展名决定（.yaml/.yml/.json）
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return LoadConfigBytes(data, format)
}

// LoadConfigBytes 从字节数据加载配置，适用于 ConfigMap 等场景
func LoadConfigBytes(data []byte, format Format) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDomainConfig 在 dir 中查找当前环境的配置文件并加载。
// 环境由 xdomain 决定：Dev 对应 dev-metering.*，Prod 对应 prod-metering.*。
func LoadDomainConfig(dir string) (Config, error) {
	path, err := DomainConfigPath(dir)
	if err != nil {
		return Config{}, err
	}
	return LoadConfig(path)
}

// DomainConfigPath 返回 dir 中当前环境的配置文件路径，按 yaml、yml、json 顺序查找
func DomainConfigPath(dir string) (string, error) {
	base := xdomain.Current().ConfigPrefix() + configSuffix
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(dir, base+ext)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
	}
	return "", fmt.Errorf("%w: %s.{yaml,yml,json} in %s", ErrConfigNotFound, base, dir)
}

func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}
