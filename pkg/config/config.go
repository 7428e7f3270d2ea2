// Package config は YAML ファイルと VIDEOBOT_* 環境変数から設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/media"
	"github.com/shouni/video-task-kit/pkg/request"
)

// EnvPrefix は環境変数の接頭辞です。provider.api_key は VIDEOBOT_PROVIDER_API_KEY になります。
const EnvPrefix = "VIDEOBOT"

// media.remote_io の値
const (
	RemoteIONone = "none"
	RemoteIOGCS  = "gcs"
	RemoteIOS3   = "s3"
)

type Config struct {
	Provider   ProviderConfig   `mapstructure:"provider"`
	Generation GenerationConfig `mapstructure:"generation"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Triggers   TriggerConfig    `mapstructure:"triggers"`
	Media      MediaConfig      `mapstructure:"media"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type ProviderConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	TaskURL       string        `mapstructure:"task_url"`
	APIKey        string        `mapstructure:"api_key"`
	StatusTimeout time.Duration `mapstructure:"status_timeout"`
}

type GenerationConfig struct {
	Model              string `mapstructure:"model"`
	NumInferenceSteps  int    `mapstructure:"num_inference_steps"`
	NumFrames          int    `mapstructure:"num_frames"`
	NegativePrompt     string `mapstructure:"negative_prompt"`
	AspectRatio        string `mapstructure:"aspect_ratio"`
	Orientation        string `mapstructure:"orientation"`
	Mode               string `mapstructure:"mode"`
	DefaultImagePrompt string `mapstructure:"default_image_prompt"`
	CompressReference  bool   `mapstructure:"compress_reference"`
	CompressionQuality int    `mapstructure:"compression_quality"`
	MaxReferenceEdge   int    `mapstructure:"max_reference_edge"`
}

// PollingConfig の Timeout は最大試行回数 floor(Timeout / RetryInterval) の算出にだけ使います。
type PollingConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type TriggerConfig struct {
	TextToVideo  []string `mapstructure:"text_to_video"`
	ImageToVideo []string `mapstructure:"image_to_video"`
}

type MediaConfig struct {
	AvatarTemplate       string        `mapstructure:"avatar_template"`
	CacheSize            int           `mapstructure:"cache_size"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	DownloadTimeout      time.Duration `mapstructure:"download_timeout"`
	BlockPrivateNetworks bool          `mapstructure:"block_private_networks"`
	RemoteIO             string        `mapstructure:"remote_io"` // gs:// / s3:// 参照の読み込み元: none, gcs, s3
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CallbackURL     string        `mapstructure:"callback_url"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults は既定値を v に登録します。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider.api_url", "https://ai.gitee.com/v1/async/videos/generations")
	v.SetDefault("provider.task_url", "https://ai.gitee.com/v1/task")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.status_timeout", 10*time.Second)

	v.SetDefault("generation.model", "Wan2.1-T2V-1.3B")
	v.SetDefault("generation.num_inference_steps", 50)
	v.SetDefault("generation.num_frames", 81)
	v.SetDefault("generation.negative_prompt", "")
	v.SetDefault("generation.aspect_ratio", "16:9")
	v.SetDefault("generation.orientation", "landscape")
	v.SetDefault("generation.mode", string(domain.WireModeJSON))
	v.SetDefault("generation.default_image_prompt", request.DefaultImagePrompt)
	v.SetDefault("generation.compress_reference", false)
	v.SetDefault("generation.compression_quality", 85)
	v.SetDefault("generation.max_reference_edge", 1280)

	v.SetDefault("polling.timeout", 1800*time.Second)
	v.SetDefault("polling.retry_interval", 10*time.Second)

	v.SetDefault("triggers.text_to_video", []string{"text-to-video", "文生视频"})
	v.SetDefault("triggers.image_to_video", []string{"image-to-video", "图生视频"})

	v.SetDefault("media.avatar_template", media.DefaultAvatarTemplate)
	v.SetDefault("media.cache_size", 128)
	v.SetDefault("media.cache_ttl", 10*time.Minute)
	v.SetDefault("media.download_timeout", 30*time.Second)
	v.SetDefault("media.block_private_networks", false)
	v.SetDefault("media.remote_io", RemoteIONone)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.callback_url", "")
	v.SetDefault("server.callback_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New は既定値と環境変数を登録した viper インスタンスを返します。
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load は設定を読み込んで検証します。
// path が空なら ./videobot.yaml を探し、見つからなければ既定値と環境変数だけを使います。
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	} else {
		v.SetConfigName("videobot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeHook は単位なしの数値を秒として time.Duration に変換します。
// "30s" のような単位付き文字列とカンマ区切りのリストは viper の既定と同じ扱いです。
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			s := strings.TrimSpace(v)
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return time.Duration(n * float64(time.Second)), nil
			}
			return s, nil
		}
		return data, nil
	}
}

// Validate は起動時に検出できる設定の誤りを返します。
// api_key が空でもここではエラーにせず、コマンド実行時に ConfigurationError として報告します。
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Provider.APIURL) == "" {
		errs = append(errs, errors.New("provider.api_url is required"))
	}
	if strings.TrimSpace(c.Provider.TaskURL) == "" {
		errs = append(errs, errors.New("provider.task_url is required"))
	}
	if c.Polling.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("polling.retry_interval must be positive: %s", c.Polling.RetryInterval))
	}
	if c.Polling.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("polling.timeout must be positive: %s", c.Polling.Timeout))
	} else if c.Polling.RetryInterval > 0 && c.Polling.Timeout < c.Polling.RetryInterval {
		errs = append(errs, fmt.Errorf("polling.timeout (%s) must not be shorter than polling.retry_interval (%s)", c.Polling.Timeout, c.Polling.RetryInterval))
	}
	switch domain.WireMode(c.Generation.Mode) {
	case domain.WireModeJSON, domain.WireModeMultipart:
	default:
		errs = append(errs, fmt.Errorf("generation.mode must be %q or %q: %q", domain.WireModeJSON, domain.WireModeMultipart, c.Generation.Mode))
	}
	if c.Generation.NumInferenceSteps <= 0 {
		errs = append(errs, fmt.Errorf("generation.num_inference_steps must be positive: %d", c.Generation.NumInferenceSteps))
	}
	if c.Generation.NumFrames <= 0 {
		errs = append(errs, fmt.Errorf("generation.num_frames must be positive: %d", c.Generation.NumFrames))
	}
	if len(c.Triggers.TextToVideo) == 0 && len(c.Triggers.ImageToVideo) == 0 {
		errs = append(errs, errors.New("at least one trigger phrase is required"))
	}
	if c.Media.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("media.cache_size must not be negative: %d", c.Media.CacheSize))
	}
	switch c.Media.RemoteIO {
	case RemoteIONone, RemoteIOGCS, RemoteIOS3:
	default:
		errs = append(errs, fmt.Errorf("media.remote_io must be one of %q, %q, %q: %q", RemoteIONone, RemoteIOGCS, RemoteIOS3, c.Media.RemoteIO))
	}
	return errors.Join(errs...)
}

// BuilderOptions は request.Builder 用のオプションに変換します。
func (c *Config) BuilderOptions() request.Options {
	g := c.Generation
	return request.Options{
		Model:              g.Model,
		NumInferenceSteps:  g.NumInferenceSteps,
		NumFrames:          g.NumFrames,
		NegativePrompt:     g.NegativePrompt,
		AspectRatio:        g.AspectRatio,
		Orientation:        g.Orientation,
		Mode:               domain.WireMode(g.Mode),
		DefaultImagePrompt: g.DefaultImagePrompt,
		CompressReference:  g.CompressReference,
		CompressionQuality: g.CompressionQuality,
		MaxReferenceEdge:   g.MaxReferenceEdge,
	}
}
