package web

import (
	"embed"
	"fmt"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/catalog"
)

//go:embed views
var viewsFS embed.FS

const (
	SiteName        = "Chinese Antique Gallery"
	SiteDescription = "Authentic Chinese antique paintings from the Ming, Qing and Republic eras"
	titleTemplate   = "%s | " + SiteName

	// TemplateUserKey names the signed in identity in every view.
	TemplateUserKey = "current_user"
)

// NewEngine returns the django engine over the embedded views.
func NewEngine() *django.Engine {
	return django.NewPathForwardingFileSystem(http.FS(viewsFS), "/views", ".html")
}

// PageTitle formats a page title with the site name.
func PageTitle(page string) string {
	if page == "" {
		return SiteName
	}
	return fmt.Sprintf(titleTemplate, page)
}

// TemplateHelpers are the functions available in every view.
//
//	{{ format_price(painting.Price) }}
//	{{ format_dimensions(painting.WidthCM, painting.HeightCM, "in") }}
//	{% if is_authenticated(current_user) %}
func TemplateHelpers() router.ViewContext {
	return router.ViewContext{
		"format_price":      catalog.FormatPrice,
		"format_dimensions": formatDimensions,
		"is_authenticated":  isAuthenticated,
		"display_name":      displayName,
	}
}

func formatDimensions(width, height float64, unit string) string {
	return catalog.FormatDimensions(width, height, catalog.Unit(unit))
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *storefront.Identity:
		return u != nil && u.ID != ""
	case storefront.Identity:
		return u.ID != ""
	default:
		return false
	}
}

func displayName(user any) string {
	switch u := user.(type) {
	case *storefront.Identity:
		return u.Name()
	case storefront.Identity:
		return u.Name()
	default:
		return ""
	}
}
