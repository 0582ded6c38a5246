package handler

import (
	"chatcore/internal/app/chat"
	"chatcore/internal/app/db"
	"chatcore/internal/configs"
)

// AppDeps bundles the collaborators every handler may need. The notifier and
// registry are explicit instances injected here; nothing in the handler layer
// reaches for ambient singletons.
type AppDeps struct {
	Config   *configs.AppConfig
	Store    *db.Store
	Registry *chat.Registry
	Notifier *chat.Notifier
}
