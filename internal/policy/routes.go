package policy

import "github.com/upb/eloboost/models"

const public models.Role = ""

// pageRules are the browser routes served by the frontend app shell
var pageRules = []Rule{
	{Path: "", Role: public},
	{Path: "login", Role: public},
	{Path: "register", Role: public},

	{Path: "owner", Role: models.RoleOwner},
	{Path: "owner/dashboard", Role: models.RoleOwner},
	{Path: "owner/settings", Role: models.RoleOwner},
	{Path: "owner/users", Role: models.RoleOwner},
	{Path: "owner/boosters", Role: models.RoleOwner},
	{Path: "owner/clients", Role: models.RoleOwner},
	{Path: "owner/orders", Role: models.RoleOwner},
	{Path: "owner/payments", Role: models.RoleOwner},
	{Path: "owner/reports", Role: models.RoleOwner},

	{Path: "booster", Role: models.RoleBooster},
	{Path: "booster/dashboard", Role: models.RoleBooster},
	{Path: "booster/orders", Role: models.RoleBooster},
	{Path: "booster/settings", Role: models.RoleBooster},
	{Path: "booster/earnings", Role: models.RoleBooster},
	{Path: "booster/appointments", Role: models.RoleBooster},

	{Path: "dashboard", Role: models.RoleClient},
	{Path: "profile", Role: models.RoleClient},
	{Path: "settings", Role: models.RoleClient},
	{Path: "orders", Role: models.RoleClient},
	{Path: "order/new", Role: models.RoleClient},
	{Path: "payment", Role: models.RoleClient},
	{Path: "contact", Role: models.RoleClient},
	{Path: "account", Role: models.RoleClient},
}

// apiRules are the JSON endpoints. Entries ending in "/*" cover a subtree.
var apiRules = []Rule{
	{Path: "api/auth/login", Role: public},
	{Path: "api/auth/register", Role: public},
	{Path: "api/auth/logout", Role: public},
	{Path: "api/auth/check-token", Role: public},
	{Path: "api/security/check-role", Role: public},

	{Path: "api/owner/users", Role: models.RoleOwner},
	{Path: "api/owner/boosters", Role: models.RoleOwner},
	{Path: "api/owner/clients", Role: models.RoleOwner},
	{Path: "api/owner/orders", Role: models.RoleOwner},
	{Path: "api/owner/reports", Role: models.RoleOwner},
	{Path: "api/owner/statistics", Role: models.RoleOwner},
	{Path: "api/owner/settings", Role: models.RoleOwner},

	{Path: "api/booster/profile", Role: models.RoleBooster},
	{Path: "api/booster/orders", Role: models.RoleBooster},
	{Path: "api/booster/availability", Role: models.RoleBooster},
	{Path: "api/booster/earnings", Role: models.RoleBooster},
	{Path: "api/booster/appointments", Role: models.RoleBooster},

	{Path: "api/client/profile", Role: models.RoleClient},
	{Path: "api/client/orders", Role: models.RoleClient},
	{Path: "api/client/payments", Role: models.RoleClient},

	{Path: "api/owner/*", Role: models.RoleOwner},
	{Path: "api/booster/*", Role: models.RoleBooster},
	{Path: "api/client/*", Role: models.RoleClient},
}

// DefaultTable returns the permission table for the site's pages and API
func DefaultTable() *Table {
	return NewTable(pageRules, apiRules)
}
