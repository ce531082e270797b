package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/goliatone/go-storefront/catalog"
	"github.com/goliatone/go-storefront/flow"
	"github.com/goliatone/go-storefront/forms"
)

const (
	featuredCount      = 4
	collectionPageSize = 24
	msgProfileUpdated  = "Profile updated"
)

func (a *Controller) HomeShow(ctx router.Context) error {
	featured, _, err := a.paintings.ListPage(ctx.Context(), catalog.Page{Limit: featuredCount})
	if err != nil {
		a.Logger.Error("list featured paintings", "error", err)
	}
	return a.render(ctx, a.Views.Home, "", router.ViewContext{
		"dynasties": catalog.Dynasties(),
		"featured":  featured,
	})
}

func (a *Controller) CollectionShow(ctx router.Context) error {
	page := ctx.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	items, total, err := a.paintings.ListPage(ctx.Context(), catalog.Page{
		Limit:  collectionPageSize,
		Offset: (page - 1) * collectionPageSize,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.render(ctx, a.Views.Collection, "Collection", router.ViewContext{
		"paintings": items,
		"total":     total,
		"page":      page,
		"prev_page": page - 1,
		"next_page": nextPage(page, total),
		"unit":      ctx.Query("unit", string(catalog.UnitCM)),
	})
}

func nextPage(page, total int) int {
	if page*collectionPageSize >= total {
		return 0
	}
	return page + 1
}

// AccountShow renders the profile and orders of the signed in visitor.
// Anonymous visitors are sent to sign in and brought back afterwards.
func (a *Controller) AccountShow(ctx router.Context) error {
	identity := a.identity(ctx)
	if identity == nil {
		a.setRedirect(ctx)
		return redirect(ctx, flow.WithQuery(a.Routes.SignIn, "message", msgSignInToView))
	}

	profile, err := a.profiles.Ensure(ctx.Context(), identity)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	orders, err := a.orders.ListByUser(ctx.Context(), identity.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.render(ctx, a.Views.Account, "My Account", router.ViewContext{
		TemplateUserKey: identity,
		"profile":       profile,
		"orders":        orders,
		"record": forms.ProfileForm{
			FullName: profile.FullName,
			Phone:    profile.Phone,
		},
		"message": a.sanitizer.Banner(ctx.Query("message", "")),
	})
}

func (a *Controller) AccountPost(ctx router.Context) error {
	identity := a.identity(ctx)
	if identity == nil {
		return redirect(ctx, a.Routes.SignIn)
	}

	payload := new(forms.ProfileForm)
	if err := ctx.Bind(payload); err != nil {
		return a.bindError(ctx, a.Views.Account, "My Account", payload, err)
	}
	payload.Region = a.phoneRegion

	if err := payload.Validate(); err != nil {
		profile, perr := a.profiles.Ensure(ctx.Context(), identity)
		if perr != nil {
			return a.ErrorHandler(ctx, perr)
		}
		orders, oerr := a.orders.ListByUser(ctx.Context(), identity.ID)
		if oerr != nil {
			return a.ErrorHandler(ctx, oerr)
		}
		return a.renderFailure(ctx, a.Views.Account, "My Account", http.StatusUnprocessableEntity, router.ViewContext{
			TemplateUserKey: identity,
			"profile":       profile,
			"orders":        orders,
			"record":        payload,
			"errors":        forms.Of(err),
		})
	}

	if _, err := a.profiles.Ensure(ctx.Context(), identity); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	err := a.profiles.UpdateContact(ctx.Context(), identity.ID, payload.TrimmedName(), payload.NormalizedPhone())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": msgProfileUpdated,
	}).Redirect(flow.WithQuery(a.Routes.Account, "message", msgProfileUpdated), router.StatusSeeOther)
}

// Health reports whether the database answers.
func (a *Controller) Health(ctx router.Context) error {
	if a.pinger == nil {
		return ctx.JSON(router.StatusOK, router.ViewContext{"status": "ok"})
	}

	pingCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	if err := a.pinger.PingContext(pingCtx); err != nil {
		a.Logger.Error("health check failed", "error", err)
		status := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		return ctx.JSON(http.StatusServiceUnavailable, router.ViewContext{"status": status})
	}
	return ctx.JSON(router.StatusOK, router.ViewContext{"status": "ok"})
}
