package model

// Keys of the blog-wide configuration map.
const (
	ConfigBlogName        = "blog_name"
	ConfigBlogDescription = "blog_description"
	ConfigFontFamily      = "font_family"
	ConfigTimezone        = "timezone"
	ConfigLanguage        = "language"
	ConfigFooterLinks     = "footer_links"
)

// DefaultBlogName is shown whenever the config is missing or failed to load.
const DefaultBlogName = "Blanko Blog"

// ConfigMap is the raw `{"configs": {...}}` payload of the config endpoints.
type ConfigMap struct {
	Configs map[string]string `json:"configs"`
}

// SiteConfig is the typed view of the display settings the console uses.
type SiteConfig struct {
	BlogName        string
	BlogDescription string
	FontFamily      string
	Timezone        string
	Language        string
}

// DefaultSiteConfig is the fallback used before the first fetch and after a
// failed one.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		BlogName: DefaultBlogName,
		Language: "en",
	}
}

// SiteConfigFromMap reads the known keys out of configs, keeping defaults
// for missing or empty values.
func SiteConfigFromMap(configs map[string]string) SiteConfig {
	cfg := DefaultSiteConfig()
	if v := configs[ConfigBlogName]; v != "" {
		cfg.BlogName = v
	}
	if v := configs[ConfigLanguage]; v != "" {
		cfg.Language = v
	}
	cfg.BlogDescription = configs[ConfigBlogDescription]
	cfg.FontFamily = configs[ConfigFontFamily]
	cfg.Timezone = configs[ConfigTimezone]
	return cfg
}

// ToMap is the inverse of SiteConfigFromMap, used when saving settings.
func (c SiteConfig) ToMap() map[string]string {
	return map[string]string{
		ConfigBlogName:        c.BlogName,
		ConfigBlogDescription: c.BlogDescription,
		ConfigFontFamily:      c.FontFamily,
		ConfigTimezone:        c.Timezone,
		ConfigLanguage:        c.Language,
	}
}

// FooterLink is one entry of the footer_links config value, which the API
// stores as a JSON-encoded array.
type FooterLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}
