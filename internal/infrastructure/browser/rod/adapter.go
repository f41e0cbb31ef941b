package rod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var _ output.TabController = (*TabController)(nil)

const (
	defaultSlowMotion = 0
	defaultTimeout    = 30 * time.Second
	maxScreenshotW    = 1024
)

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	ControlURL string
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   true,
		SlowMotion: defaultSlowMotion,
		Timeout:    defaultTimeout,
		NoSandbox:  false,
		DevTools:   false,
	}
}

// TabController keeps one rod.Page per handle. The most recently opened or
// navigated page is the active one.
type TabController struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   output.LoggerPort

	mu     sync.Mutex
	pages  map[output.TabHandle]*rod.Page
	active output.TabHandle
}

func NewTabController(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*TabController, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	controlURL := cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().
			Headless(cfg.Headless).
			Devtools(cfg.DevTools).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().
		Context(ctx).
		ControlURL(controlURL).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &TabController{
		browser:  browser,
		launcher: l,
		timeout:  cfg.Timeout,
		logger:   logger.WithField("component", "tabs"),
		pages:    make(map[output.TabHandle]*rod.Page),
	}, nil
}

func (c *TabController) page(handle output.TabHandle) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", output.ErrTabNotFound, handle)
	}
	return p, nil
}

func (c *TabController) Open(ctx context.Context, url string, background bool) (output.TabHandle, error) {
	p, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url, Background: background})
	if err != nil {
		return "", fmt.Errorf("open tab %s: %w", url, err)
	}

	handle := output.TabHandle(p.TargetID)
	c.mu.Lock()
	c.pages[handle] = p
	if !background || c.active == "" {
		c.active = handle
	}
	c.mu.Unlock()

	c.logger.Debug("Tab opened", "handle", handle, "url", url, "background", background)
	return handle, nil
}

func (c *TabController) Navigate(ctx context.Context, handle output.TabHandle, url string) error {
	p, err := c.page(handle)
	if err != nil {
		return err
	}
	if err := p.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	c.mu.Lock()
	c.active = handle
	c.mu.Unlock()
	return nil
}

func (c *TabController) WaitForLoad(ctx context.Context, handle output.TabHandle, timeout time.Duration) error {
	p, err := c.page(handle)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	err = p.Context(ctx).Timeout(timeout).WaitLoad()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", output.ErrLoadTimeout, timeout)
	}
	if err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (c *TabController) RunInPage(ctx context.Context, handle output.TabHandle, fn string, args ...any) (json.RawMessage, error) {
	p, err := c.page(handle)
	if err != nil {
		return nil, err
	}

	res, err := p.Context(ctx).Timeout(c.timeout).Eval(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("eval in page: %w", err)
	}
	return json.RawMessage(res.Value.JSON("", "")), nil
}

func (c *TabController) CaptureVisual(ctx context.Context, handle output.TabHandle) (*entity.Screenshot, error) {
	p, err := c.page(handle)
	if err != nil {
		return nil, err
	}
	p = p.Context(ctx).Timeout(c.timeout)

	imgBytes, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	shot, err := encodeScreenshot(imgBytes)
	if err != nil {
		return nil, err
	}

	if info, err := p.Info(); err == nil {
		shot.URL = info.URL
	}
	shot.Timestamp = time.Now()
	return shot, nil
}

// encodeScreenshot downsizes wide captures and re-encodes them as JPEG.
func encodeScreenshot(raw []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > maxScreenshotW {
		img = imaging.Resize(img, maxScreenshotW, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (c *TabController) Close(ctx context.Context, handle output.TabHandle) error {
	c.mu.Lock()
	p, ok := c.pages[handle]
	delete(c.pages, handle)
	if c.active == handle {
		c.active = ""
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", output.ErrTabNotFound, handle)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// Active returns the current tab, opening a blank one if there is none.
func (c *TabController) Active(ctx context.Context) (output.TabHandle, error) {
	c.mu.Lock()
	handle := c.active
	c.mu.Unlock()
	if handle != "" {
		return handle, nil
	}
	return c.Open(ctx, "about:blank", false)
}

func (c *TabController) Shutdown() {
	if c.browser != nil {
		_ = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
}
