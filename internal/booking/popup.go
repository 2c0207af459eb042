package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
)

// popupCeiling caps the popup wait regardless of the navigation timeout.
const popupCeiling = 10 * time.Second

// PopupResolver acquires the window opened by a click.
type PopupResolver struct {
	NavigationTimeout time.Duration
	Ceiling           time.Duration
}

func NewPopupResolver(navigationTimeout time.Duration) *PopupResolver {
	return &PopupResolver{NavigationTimeout: navigationTimeout, Ceiling: popupCeiling}
}

func (r *PopupResolver) budget() time.Duration {
	ceiling := r.Ceiling
	if ceiling <= 0 {
		ceiling = popupCeiling
	}
	if r.NavigationTimeout <= 0 {
		return ceiling
	}
	return min(r.NavigationTimeout, ceiling)
}

// PendingPopup is an armed popup listener. Exactly one of a page or an
// error is returned by Wait.
type PendingPopup struct {
	pages    chan browser.Page
	stop     func()
	once     sync.Once
	deadline time.Time

	mu       sync.Mutex
	released bool
}

// Arm registers the new page listener. It has to be called before the
// click that opens the popup. The wait budget starts now.
func (r *PopupResolver) Arm(b browser.Browser) *PendingPopup {
	p := &PendingPopup{
		pages:    make(chan browser.Page, 1),
		deadline: time.Now().Add(r.budget()),
	}
	p.stop = b.OnNewPage(func(np browser.Page) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.released {
			select {
			case p.pages <- np:
				return
			default:
			}
		}
		np.Close()
	})
	return p
}

// Wait returns the first page opened after Arm once it reached
// DOMContentLoaded, or ErrPopupTimeout. It releases the listener.
func (p *PendingPopup) Wait(ctx context.Context) (browser.Page, error) {
	defer p.Release()
	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()
	select {
	case np := <-p.pages:
		if err := np.WaitForLoad(ctx, browser.LoadDOMContentLoaded, time.Until(p.deadline)); err != nil {
			np.Close()
			return nil, fmt.Errorf("popup did not load: %v: %w", err, ErrPopupTimeout)
		}
		return np, nil
	case <-timer.C:
		return nil, ErrPopupTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release removes the listener and closes pages nobody took. It is safe
// to call more than once.
func (p *PendingPopup) Release() {
	p.once.Do(func() {
		p.mu.Lock()
		p.released = true
		select {
		case np := <-p.pages:
			np.Close()
		default:
		}
		p.mu.Unlock()
		p.stop()
	})
}
