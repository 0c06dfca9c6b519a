package xmodel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhttp"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
)

// Fetcher 下载远程模型文件到本地缓存目录
//
// 同一 url 的并发下载(包括多进程)通过文件锁串行，已存在的文件直接复用
type Fetcher struct {
	Dir         string
	LockTimeout time.Duration
	Client      *resty.Client
}

func NewFetcher(c *Config) *Fetcher {
	c = configMergeDefault(c)
	return &Fetcher{Dir: c.CacheDir, LockTimeout: xutil.ToDuration(c.LockTimeout), Client: xhttp.C()}
}

// CachePath url 对应的本地路径: <Dir>/<sha256前16位>-<文件名>
func (f *Fetcher) CachePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", xerror.ModelUnavailable("invalid model url %q", rawURL)
	}
	sum := sha256.Sum256([]byte(rawURL))
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "model"
	}
	return filepath.Join(f.Dir, hex.EncodeToString(sum[:8])+"-"+name), nil
}

// Fetch 下载到 CachePath
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := f.CachePath(rawURL)
	if err != nil {
		return "", err
	}
	return f.FetchTo(ctx, rawURL, target)
}

// FetchTo 下载到指定路径，目标已存在时不再下载
func (f *Fetcher) FetchTo(ctx context.Context, rawURL, target string) (string, error) {
	if xutil.FileExist(target) {
		return target, nil
	}
	if err := xutil.EnsureDir(filepath.Dir(target)); err != nil {
		return "", xerror.Wrap(xerror.KindModelUnavailable, err, "create cache dir")
	}

	lock := flock.New(target + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, f.lockTimeout())
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil || !ok {
		return "", xerror.ModelUnavailable("lock %s failed, err=[%v]", target, err)
	}
	defer func() { _ = lock.Unlock() }()

	// 等锁期间可能已被其他进程下载完成
	if xutil.FileExist(target) {
		return target, nil
	}
	if err := f.download(ctx, rawURL, target); err != nil {
		return "", err
	}
	return target, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, target string) error {
	start := time.Now()
	resp, err := f.client().R().SetContext(ctx).SetDoNotParseResponse(true).Get(rawURL)
	if err != nil {
		return xerror.Wrap(xerror.KindModelUnavailable, err, "download "+rawURL)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()
	if resp.StatusCode() != 200 {
		return xerror.ModelUnavailable("download %s: unexpected status %d", rawURL, resp.StatusCode())
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.part")
	if err != nil {
		return xerror.Wrap(xerror.KindModelUnavailable, err, "create temp file")
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return xerror.Wrap(xerror.KindModelUnavailable, err, "write "+target)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return xerror.Wrap(xerror.KindModelUnavailable, err, "rename "+target)
	}
	xutil.InfoIfEnableDebug("XInfer model downloaded, url=%s, size=%s, cost=%s",
		rawURL, humanize.Bytes(uint64(n)), time.Since(start))
	return nil
}

func (f *Fetcher) client() *resty.Client {
	if f.Client != nil {
		return f.Client
	}
	return xhttp.C()
}

func (f *Fetcher) lockTimeout() time.Duration {
	if f.LockTimeout > 0 {
		return f.LockTimeout
	}
	return 10 * time.Minute
}
