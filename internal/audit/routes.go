package audit

import (
	"net/http"
	"strings"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// Route is the audit classification of an endpoint.
type Route struct {
	Action models.Action
	Entity models.EntityType
}

// Routes classifies endpoints by "METHOD pattern", where pattern is the chi
// route pattern without a trailing slash.
var Routes = map[string]Route{
	"POST /api/users/register":               {models.ActionRegister, models.EntityUser},
	"POST /api/users/verify-otp":             {models.ActionUpdate, models.EntityUser},
	"POST /api/users/resend-otp":             {models.ActionUpdate, models.EntityUser},
	"POST /api/users/login":                  {models.ActionLogin, models.EntityUser},
	"POST /api/users/logout":                 {models.ActionLogout, models.EntityUser},
	"POST /api/users/request-password-reset": {models.ActionPasswordReset, models.EntityUser},
	"POST /api/users/reset-password":         {models.ActionPasswordReset, models.EntityUser},
	"PUT /api/users/change-password":         {models.ActionPasswordReset, models.EntityUser},
	"PUT /api/users/profile":                 {models.ActionProfileUpdate, models.EntityUser},
	"DELETE /api/users/{id}":                 {models.ActionAdmin, models.EntityUser},

	"POST /api/mfa/setup":   {models.ActionUpdate, models.EntityUser},
	"POST /api/mfa/verify":  {models.ActionUpdate, models.EntityUser},
	"POST /api/mfa/disable": {models.ActionUpdate, models.EntityUser},

	"POST /api/posts":                  {models.ActionUpload, models.EntityPost},
	"POST /api/posts/{id}/like":        {models.ActionUpdate, models.EntityPost},
	"DELETE /api/posts/{id}/like":      {models.ActionUpdate, models.EntityPost},
	"POST /api/posts/{id}/comment":     {models.ActionCreate, models.EntityPost},
	"POST /api/government/create":      {models.ActionCreate, models.EntityGovernment},
	"POST /api/guidances/post":         {models.ActionCreate, models.EntityGuidance},
	"PUT /api/guidances/{id}/tracking": {models.ActionUpdate, models.EntityGuidance},
	"POST /api/notifications/post":     {models.ActionCreate, models.EntityNotification},
	"POST /api/feedbacks":              {models.ActionCreate, models.EntityFeedback},
	"POST /api/payment/initiate":       {models.ActionPayment, models.EntityPayment},
	"POST /api/payment/verify":         {models.ActionPayment, models.EntityPayment},
}

// entityPrefixes maps route prefixes to entity types for unlisted routes.
var entityPrefixes = []struct {
	prefix string
	entity models.EntityType
}{
	{"/api/users", models.EntityUser},
	{"/api/mfa", models.EntityUser},
	{"/api/posts", models.EntityPost},
	{"/api/payment", models.EntityPayment},
	{"/api/guidances", models.EntityGuidance},
	{"/api/feedbacks", models.EntityFeedback},
	{"/api/notifications", models.EntityNotification},
	{"/api/government", models.EntityGovernment},
}

// Classify returns the action and entity for a request method and route pattern.
func Classify(method, pattern string) Route {
	pattern = normalizePattern(pattern)
	if r, ok := Routes[method+" "+pattern]; ok {
		return r
	}

	route := Route{Action: actionForMethod(method), Entity: models.EntitySystem}
	for _, p := range entityPrefixes {
		if pattern == p.prefix || strings.HasPrefix(pattern, p.prefix+"/") {
			route.Entity = p.entity
			break
		}
	}
	if strings.HasPrefix(pattern, "/admin") && method != http.MethodGet {
		route.Action = models.ActionAdmin
	}
	return route
}

func actionForMethod(method string) models.Action {
	switch method {
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate
	case http.MethodDelete:
		return models.ActionDelete
	default:
		return models.ActionView
	}
}

func normalizePattern(p string) string {
	p = strings.TrimSuffix(p, "/*")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
