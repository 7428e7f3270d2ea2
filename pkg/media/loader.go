package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/video-task-kit/pkg/imgutil"
	"github.com/shouni/video-task-kit/pkg/utils"
)

const (
	prefixBase64   = "base64://"
	prefixDataURI  = "data:"
	cacheKeyPrefix = "still:"
)

// Loader は参照文字列（ローカルパス、URL、base64、data URI、gs://、s3://）を静止画バイト列に解決します。
// プライベートネットワーク宛 URL の拒否は注入された HTTPClient 側で行います。
type Loader struct {
	httpClient HTTPClient
	reader     remoteio.InputReader
	cache      ImageCacher
	cacheTTL   time.Duration
	group      singleflight.Group
}

// LoaderOption は Loader の任意設定です。
type LoaderOption func(*Loader)

// WithRemoteReader は gs:// などのリモートオブジェクトの読み込みに使う Reader を設定します。
func WithRemoteReader(r remoteio.InputReader) LoaderOption {
	return func(l *Loader) { l.reader = r }
}

// WithCache はダウンロード済み画像のキャッシュを設定します。
func WithCache(c ImageCacher, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.cacheTTL = ttl
	}
}

// NewLoader は依存関係を注入して Loader を初期化します。
func NewLoader(httpClient HTTPClient, opts ...LoaderOption) (*Loader, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	l := &Loader{httpClient: httpClient}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadBytes は ref を読み込み、アニメーション画像なら最初のフレームに正規化して返します。
// どの段階で失敗しても nil を返します。
func (l *Loader) LoadBytes(ctx context.Context, ref string) []byte {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	if l.cache != nil {
		if cached, found := l.cache.Get(cacheKeyPrefix + ref); found {
			if data, ok := cached.([]byte); ok {
				return data
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "ref", ref, "type", fmt.Sprintf("%T", cached))
		}
	}

	// 同じ参照の同時読み込みは 1 回にまとめる
	v, err, _ := l.group.Do(ref, func() (any, error) {
		raw, err := l.readRaw(ctx, ref)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("空のデータです")
		}
		return imgutil.ToStill(raw)
	})
	if err != nil {
		slog.WarnContext(ctx, "画像の読み込みに失敗しました", "ref", summarizeRef(ref), "error", err)
		return nil
	}

	data := v.([]byte)
	if l.cache != nil && isRemote(ref) {
		l.cache.Set(cacheKeyPrefix+ref, data, l.cacheTTL)
	}
	return data
}

func (l *Loader) readRaw(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, prefixBase64):
		return base64.StdEncoding.DecodeString(ref[len(prefixBase64):])
	case strings.HasPrefix(ref, prefixDataURI):
		_, data, err := utils.DecodeDataURI(ref)
		return data, err
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.httpClient.FetchBytes(ctx, ref)
	case remoteio.IsRemoteURI(ref):
		if l.reader == nil {
			return nil, fmt.Errorf("リモートReaderが設定されていません: %s", ref)
		}
		rc, err := l.reader.Open(ctx, ref)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("未対応の参照です: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("通常ファイルではありません: %s", ref)
	}
	return os.ReadFile(ref)
}

func isRemote(ref string) bool {
	return strings.Contains(ref, "://") && !strings.HasPrefix(ref, prefixBase64)
}

// ログに base64 ペイロード全体を出さないための要約
func summarizeRef(ref string) string {
	if strings.HasPrefix(ref, prefixBase64) || strings.HasPrefix(ref, prefixDataURI) {
		return utils.Truncate(ref, 32)
	}
	return ref
}
