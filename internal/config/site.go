package config

import (
	"maps"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SiteConfig holds the crawl settings of one site. Unset fields leave the
// current value alone.
type SiteConfig struct {
	// Container locates the content to store.
	Container *model.ContainerSpec `yaml:"container,omitempty"`

	// Sink is text or image.
	Sink string `yaml:"sink,omitempty"`

	// Redundant is removed from page titles.
	Redundant string `yaml:"redundant,omitempty"`

	// Separator splits titles into nested directories.
	Separator string `yaml:"separator,omitempty"`

	// Category selects the element naming the first output directory.
	Category *model.ElementSpec `yaml:"category,omitempty"`

	// Strategy and Workers override the concurrency settings.
	Strategy string `yaml:"strategy,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`

	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgents replaces the user agent rotation.
	UserAgents []string `yaml:"userAgents,omitempty"`
}

// File is the structure of the .sitecrawl profile file.
type File struct {
	// Defaults apply to every site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a domain (host, with port if any) to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the defaults merged with the settings of domain.
// Domains are compared case-insensitively.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[domain]
	if !ok {
		for key, candidate := range cf.Sites {
			if strings.EqualFold(key, domain) {
				site, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if site.Container != nil {
		result.Container = site.Container
	}
	if site.Sink != "" {
		result.Sink = site.Sink
	}
	if site.Redundant != "" {
		result.Redundant = site.Redundant
	}
	if site.Separator != "" {
		result.Separator = site.Separator
	}
	if site.Category != nil {
		result.Category = site.Category
	}
	if site.Strategy != "" {
		result.Strategy = site.Strategy
	}
	if site.Workers != 0 {
		result.Workers = site.Workers
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.UserAgents) > 0 {
		result.UserAgents = site.UserAgents
	}

	return result
}
