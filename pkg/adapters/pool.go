package adapters

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// ClientPool はプラグイン単位で共有する HTTP クライアント（コネクションプール）です。
// 最初の利用時に生成し、Close 後に再度使われた場合は作り直します。
type ClientPool struct {
	mu        sync.Mutex
	client    *http.Client
	created   int
	newClient func() *http.Client
}

// NewClientPool は遅延生成される ClientPool を作ります。
func NewClientPool() *ClientPool {
	return &ClientPool{newClient: defaultHTTPClient}
}

func defaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	// 全体のタイムアウトはリクエストごとの context で制御する
	return &http.Client{Transport: transport}
}

// Client は共有クライアントを返します。未生成または Close 済みなら生成します。
func (p *ClientPool) Client() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		p.client = p.newClient()
		p.created++
	}
	return p.client
}

// Do は共有クライアントでリクエストを送信します。httpkit.Doer を満たします。
func (p *ClientPool) Do(req *http.Request) (*http.Response, error) {
	return p.Client().Do(req)
}

// Close はアイドル接続を解放してクライアントを破棄します。何度呼んでも安全です。
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return
	}
	p.client.CloseIdleConnections()
	p.client = nil
}
