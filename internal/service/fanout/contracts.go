//go:generate mockgen -source=contracts.go -destination=fanout_mocks_test.go -package=fanout

package fanout

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/push"
	"service-dispatch/internal/presence"
)

// Template is the configured title/body text of one event.
type Template struct {
	Title string
	Body  string
}

// Role is one configured notification target for an event. ManagerRole
// carries the named role when Kind is manager; empty otherwise.
type Role struct {
	Kind        domain.RecipientKind
	ManagerRole string
}

// SettingsStore resolves which roles to notify for an event, with template
// text. Unknown events resolve to no recipients.
type SettingsStore interface {
	RolesFor(ctx context.Context, event string) ([]Role, Template, error)
}

type presencePort interface {
	Tokens(userID string) []string
	Connection(userID string) (presence.Conn, bool)
}

type pushPort interface {
	Send(ctx context.Context, tokens []string, msg push.Message) push.Outcome
}

type logStore interface {
	Insert(ctx context.Context, e *domain.NotificationLogEntry) error
}
