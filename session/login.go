package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sign-in form selectors on login.live.com.
const (
	selEmail        = "input[type='email']"
	selPassword     = "input[name='passwd']"
	selSubmit       = "#idSIButton9"
	selStaySignedIn = "#acceptButton"
	selKmsi         = "#KmsiCheckboxField"
)

// Credentials sign a session in.
type Credentials struct {
	Username string
	Password string
}

// Login opens the dashboard and signs in when redirected to the login
// page. A persisted profile usually skips the form entirely.
func (s *Session) Login(ctx context.Context, c Credentials) error {
	if err := s.page.Navigate(ctx, RewardsURL); err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	if s.onLoginPage(ctx) {
		s.logger.Info("session: signing in", "account", c.Username)
		if err := s.submitLogin(ctx, c); err != nil {
			return fmt.Errorf("session: login: %w", err)
		}
	} else {
		s.logger.Info("session: already signed in", "account", c.Username)
	}

	if _, err := s.Dashboard(ctx); err != nil {
		if errors.Is(err, ErrNoDashboard) {
			return fmt.Errorf("session: login: still signed out after submitting credentials: %w", err)
		}
		return fmt.Errorf("session: login: %w", err)
	}

	// Visiting the search home once binds the rewards cookie to bing.com.
	if err := s.page.Navigate(ctx, HomeURL); err != nil {
		s.logger.Warn("session: home visit failed", "error", err)
	}
	return nil
}

func (s *Session) onLoginPage(ctx context.Context) bool {
	u := s.page.URL()
	return strings.Contains(u, "login.live.com") || strings.Contains(u, "login.microsoftonline.com") || s.page.Has(ctx, selEmail)
}

func (s *Session) submitLogin(ctx context.Context, c Credentials) error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("missing username or password")
	}
	stepCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := s.page.Fill(stepCtx, selEmail, c.Username); err != nil {
		return err
	}
	if err := s.page.Click(stepCtx, selSubmit); err != nil {
		return err
	}
	if err := s.page.Fill(stepCtx, selPassword, c.Password); err != nil {
		return err
	}
	if err := s.page.Click(stepCtx, selSubmit); err != nil {
		return err
	}

	// "Stay signed in?" prompt, shown on most accounts.
	if s.page.Has(stepCtx, selKmsi) {
		_ = s.page.Click(stepCtx, selKmsi)
	}
	if s.page.Has(stepCtx, selStaySignedIn) {
		_ = s.page.Click(stepCtx, selStaySignedIn)
	} else if s.page.Has(stepCtx, selSubmit) {
		_ = s.page.Click(stepCtx, selSubmit)
	}
	return s.page.Navigate(ctx, RewardsURL)
}
