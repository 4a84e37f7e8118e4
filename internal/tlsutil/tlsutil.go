package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/BaSui01/flowguard/config"
)

// aeadSuites TLS 1.2 下允许的密码套件，TLS 1.3 套件由标准库固定
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// ClientConfig 返回加固的客户端 TLS 配置。serverName 为空时由拨号地址推断。
func ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: append([]uint16(nil), aeadSuites...),
		ServerName:   serverName,
	}
}

// IsAEAD 报告 suite 是否在允许列表中
func IsAEAD(suite uint16) bool {
	for _, s := range aeadSuites {
		if s == suite {
			return true
		}
	}
	return false
}

// HTTPClient 返回使用加固 TLS 的 HTTP 客户端，供 Browserbase 与视觉模型 API 调用
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: ClientConfig(""),
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// RedisConfig 返回 Redis 连接的 TLS 配置，未启用 TLS 时返回 nil
func RedisConfig(cfg config.RedisConfig) *tls.Config {
	if !cfg.TLS {
		return nil
	}
	c := ClientConfig(cfg.TLSServerName)
	if c.ServerName == "" {
		if host, _, err := net.SplitHostPort(cfg.Addr); err == nil {
			c.ServerName = host
		}
	}
	return c
}
