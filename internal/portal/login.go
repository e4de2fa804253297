package portal

import (
	"context"
	"fmt"
	"time"
)

const (
	report_login = "portal.login"
)

// LoginResult is what the browser-automation collaborator hands back after
// driving the interactive login flow. Cookies is the authoritative
// artifact; the named tokens are best-effort extras.
type LoginResult struct {
	SessionToken string
	CsrfToken    string
	CallbackUrl  string
	// Cookies is the full Cookie-header formatted blob.
	Cookies string
}

// LoginDriver is the interface boundary to the browser-automation login
// flow. The core treats it purely as an opaque cookie-blob producer.
type LoginDriver interface {
	Login(ctx context.Context) (LoginResult, error)
}

const (
	loginAttempts = 3
	loginBackoff  = 2 * time.Second
)

// Login drives the external login collaborator with a bounded, fixed
// backoff retry. Exceeding the attempt budget is a terminal failure for
// this operation, not for the process.
func (p *Portal) Login(ctx context.Context, driver LoginDriver) error {
	var lastErr error
	for attempt := 0; attempt < loginAttempts; attempt++ {
		if attempt > 0 {
			p.tel.ReportDebug("retrying login", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(loginBackoff):
			}
		}

		result, err := driver.Login(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if result.Cookies == "" {
			lastErr = fmt.Errorf("login flow completed but produced no cookies")
			continue
		}

		p.session.SetCookies(result.Cookies)
		if !p.session.IsAuthenticated() {
			lastErr = fmt.Errorf("login cookies carry no session token")
			continue
		}
		return nil
	}

	err := fmt.Errorf(
		"login failed after %d attempts: %w (check credentials, or paste session cookies manually)",
		loginAttempts, lastErr,
	)
	p.tel.ReportBroken(report_login, err)
	return err
}
