package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytetopia/blanko-console/internal/apperror"
	"github.com/bytetopia/blanko-console/internal/model"
)

// Settings validation rules.
const (
	MinPasswordLength  = 6
	MaxBlogNameLength  = 100
	MaxFooterLinkCount = 20
)

// Languages lists the visitor page languages the blog supports, in the
// order the settings page offers them.
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "zh-CN", Name: "简体中文 (Simplified Chinese)"},
}

type Language struct {
	Code string
	Name string
}

func supportedLanguage(code string) bool {
	for _, l := range Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// SettingsAPI covers the config and password endpoints.
type SettingsAPI interface {
	GetConfig(ctx context.Context) (map[string]string, error)
	UpdateConfig(ctx context.Context, configs map[string]string) error
	UpdatePassword(ctx context.Context, in model.PasswordChange) error
}

// ConfigRefresher is told to reload after the blog config changes, so the
// header and timezone everywhere else pick up the new values.
type ConfigRefresher interface {
	Refetch(ctx context.Context) error
}

// Settings is the page model of /admin/settings.
type Settings struct {
	Config      model.SiteConfig
	FooterLinks []model.FooterLink
}

// PasswordForm is what the operator types into the password form.
type PasswordForm struct {
	Current string
	New     string
	Confirm string
}

type SettingsService struct {
	api     SettingsAPI
	refresh ConfigRefresher
	logger  *slog.Logger
}

func NewSettingsService(api SettingsAPI, refresh ConfigRefresher, logger *slog.Logger) *SettingsService {
	return &SettingsService{api: api, refresh: refresh, logger: logger}
}

// Load fetches the raw config for editing. Unlike the site config store it
// does not fall back to defaults: the form must show what is stored.
func (s *SettingsService) Load(ctx context.Context) (*Settings, error) {
	configs, err := s.api.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	out := &Settings{Config: model.SiteConfigFromMap(configs)}
	if raw := configs[model.ConfigFooterLinks]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &out.FooterLinks); err != nil {
			// A corrupt value is shown as empty so the operator can overwrite it.
			s.logger.Warn("ignoring unreadable footer links", slog.String("error", err.Error()))
			out.FooterLinks = nil
		}
	}
	return out, nil
}

// UpdateConfig validates and stores the blog configuration, then refreshes
// the shared site config.
func (s *SettingsService) UpdateConfig(ctx context.Context, cfg model.SiteConfig) error {
	cfg.BlogName = strings.TrimSpace(cfg.BlogName)
	cfg.BlogDescription = strings.TrimSpace(cfg.BlogDescription)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)

	if cfg.BlogName == "" {
		return apperror.ValidationFailed("blog_name", "blog name is required")
	}
	if utf8.RuneCountInString(cfg.BlogName) > MaxBlogNameLength {
		return apperror.ValidationFailed("blog_name",
			fmt.Sprintf("blog name must be %d characters or less", MaxBlogNameLength))
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return apperror.ValidationFailed("timezone", fmt.Sprintf("unknown timezone %q", cfg.Timezone))
		}
	}
	if cfg.Language == "" {
		cfg.Language = model.DefaultSiteConfig().Language
	}
	if !supportedLanguage(cfg.Language) {
		return apperror.ValidationFailed("language", fmt.Sprintf("unsupported language %q", cfg.Language))
	}

	if err := s.api.UpdateConfig(ctx, cfg.ToMap()); err != nil {
		return fmt.Errorf("updating config: %w", err)
	}
	s.logger.Info("site config updated", slog.String("blog_name", cfg.BlogName))
	s.refetch(ctx)
	return nil
}

// UpdateFooterLinks replaces the footer link list. Every link needs both
// text and a URL.
func (s *SettingsService) UpdateFooterLinks(ctx context.Context, links []model.FooterLink) error {
	if len(links) > MaxFooterLinkCount {
		return apperror.ValidationFailed("footer_links",
			fmt.Sprintf("at most %d footer links are allowed", MaxFooterLinkCount))
	}
	clean := make([]model.FooterLink, 0, len(links))
	for i, l := range links {
		l.Text = strings.TrimSpace(l.Text)
		l.URL = strings.TrimSpace(l.URL)
		if l.Text == "" || l.URL == "" {
			return apperror.ValidationFailed("footer_links",
				fmt.Sprintf("link %d: please fill in both text and URL", i+1))
		}
		clean = append(clean, l)
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("encoding footer links: %w", err)
	}
	if err := s.api.UpdateConfig(ctx, map[string]string{model.ConfigFooterLinks: string(raw)}); err != nil {
		return fmt.Errorf("updating footer links: %w", err)
	}
	s.logger.Info("footer links updated", slog.Int("count", len(clean)))
	s.refetch(ctx)
	return nil
}

// ChangePassword checks the form locally before asking the API, which
// verifies the current password.
func (s *SettingsService) ChangePassword(ctx context.Context, form PasswordForm) error {
	if form.Current == "" {
		return apperror.ValidationFailed("current_password", "current password is required")
	}
	if form.New != form.Confirm {
		return apperror.ValidationFailed("confirm_password", "New password and confirmation do not match")
	}
	if utf8.RuneCountInString(form.New) < MinPasswordLength {
		return apperror.ValidationFailed("new_password",
			fmt.Sprintf("New password must be at least %d characters long", MinPasswordLength))
	}
	if form.New == form.Current {
		return apperror.ValidationFailed("new_password", "new password must differ from the current one")
	}

	err := s.api.UpdatePassword(ctx, model.PasswordChange{
		CurrentPassword: form.Current,
		NewPassword:     form.New,
	})
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	s.logger.Info("password changed")
	return nil
}

// refetch failures are already recorded in the store's state.
func (s *SettingsService) refetch(ctx context.Context) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh.Refetch(ctx); err != nil {
		s.logger.Warn("site config refresh after update failed", slog.String("error", err.Error()))
	}
}
