package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known host for published legal documents.
type Platform string

const (
	// PlatformTermly is the Termly policy generator
	PlatformTermly Platform = "termly"
	// PlatformIubenda is the iubenda policy generator
	PlatformIubenda Platform = "iubenda"
	// PlatformGoogleDocs is a published Google Doc
	PlatformGoogleDocs Platform = "google_docs"
	// PlatformNotion is a public Notion page
	PlatformNotion Platform = "notion"
	// PlatformUnknown is an unrecognized host
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the document host from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.HasSuffix(host, "termly.io"):
		return PlatformTermly
	case strings.HasSuffix(host, "iubenda.com"):
		return PlatformIubenda
	case host == "docs.google.com":
		return PlatformGoogleDocs
	case strings.HasSuffix(host, "notion.site"), strings.HasSuffix(host, "notion.so"):
		return PlatformNotion
	default:
		return PlatformUnknown
	}
}

// RequiresBrowser reports whether pages on the platform are rendered client-side.
func RequiresBrowser(platform Platform) bool {
	return platform == PlatformNotion || platform == PlatformTermly
}

// PlatformContentSelectors returns content selectors optimized for a specific platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformTermly:
		return []string{
			"[data-custom-class='body']",
			"#termly-code-snippet-support",
			".termly-document",
		}
	case PlatformIubenda:
		return []string{
			"#wbars_all",
			".iub_content",
			".iub_container",
		}
	case PlatformGoogleDocs:
		return []string{
			"#contents",
			".doc-content",
		}
	case PlatformNotion:
		return []string{
			".notion-page-content",
			"main",
		}
	default:
		return LegalPageSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		// cookie and consent UI
		".cookie-consent",
		".gdpr-notice",
		"#onetrust-banner-sdk",
		"#onetrust-consent-sdk",
		".cc-window",

		// sharing and feedback widgets
		".social-share",
		".share-buttons",
		".feedback",

		// in-page navigation
		".table-of-contents",
		".toc",
		".breadcrumbs",
		".skip-link",
	}

	switch platform {
	case PlatformTermly:
		return append(common, ".termly-styles", "#termly-consent-banner")
	case PlatformIubenda:
		return append(common, ".iub_footer", "#iubenda-cs-banner")
	case PlatformGoogleDocs:
		return append(common, "#header", "#footer")
	case PlatformNotion:
		return append(common, ".notion-topbar", ".notion-overlay-container")
	default:
		return common
	}
}
