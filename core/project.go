package core

import (
	"context"
	"time"
)

type (
	// Template is a reusable layout authored in designer mode. Data holds
	// the serialized EditorDocument; it is omitted from list views to keep
	// responses light.
	Template struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // Not exposed in JSON responses, used internally.
		Name      string    `json:"name"`
		FilterIDs []string  `json:"filterIds,omitempty"`
		Data      []byte    `json:"data,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Project is a user's instantiation of a template (or a blank canvas).
	// TemplateOwnerID identifies who may edit the structure; everyone else
	// only fills linked placeholders.
	Project struct {
		ID              string    `json:"id"`
		UserID          string    `json:"-"`
		Name            string    `json:"name"`
		TemplateID      string    `json:"templateId,omitempty"`
		TemplateOwnerID string    `json:"templateOwnerId,omitempty"`
		Data            []byte    `json:"data,omitempty"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	// Filter is one entry of the template taxonomy (format, theme, ...).
	Filter struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Name     string `json:"name"`
	}

	// Asset is an uploaded image blob, addressed by the opaque key handed
	// back to the editor on upload.
	Asset struct {
		Key         string    `json:"key"`
		ContentType string    `json:"contentType"`
		Data        []byte    `json:"data,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Message is one chat entry between a project user and the template
	// owner, scoped to a room (one room per project).
	Message struct {
		ID     string    `json:"id"`
		RoomID string    `json:"roomId"`
		UserID string    `json:"userId"`
		Login  string    `json:"login"`
		Body   string    `json:"body"`
		SentAt time.Time `json:"sentAt"`
	}

	// TemplateStore defines persistence for templates. List and the
	// mutating operations are scoped to the owning user; Find and Browse
	// serve template consumers picking a starting point.
	TemplateStore interface {
		// List returns metadata for all templates owned by a user, without Data.
		List(ctx context.Context, userID string) ([]*Template, error)

		// Browse returns metadata for every template, optionally narrowed to
		// one filter id. Used by the template picker.
		Browse(ctx context.Context, filterID string) ([]*Template, error)

		// Find returns a template by id regardless of owner, including Data.
		Find(ctx context.Context, id string) (*Template, error)

		// SaveTemplate creates or updates a template for its owner.
		SaveTemplate(ctx context.Context, template *Template) error

		// DeleteTemplate removes a template, ensuring it belongs to the user.
		DeleteTemplate(ctx context.Context, userID, id string) error
	}

	// ProjectStore defines persistence for projects. All operations are
	// scoped to the owning user.
	ProjectStore interface {
		ListProjects(ctx context.Context, userID string) ([]*Project, error)
		GetProject(ctx context.Context, userID, id string) (*Project, error)
		SaveProject(ctx context.Context, project *Project) error
		DeleteProject(ctx context.Context, userID, id string) error
	}

	// FilterStore serves the filter taxonomy.
	FilterStore interface {
		ListFilters(ctx context.Context) ([]Filter, error)
	}

	// AssetStore persists uploaded images by key.
	AssetStore interface {
		SaveAsset(ctx context.Context, asset *Asset) error
		GetAsset(ctx context.Context, key string) (*Asset, error)
		DeleteAsset(ctx context.Context, key string) error
	}

	// MessageStore persists the per-room chat log.
	MessageStore interface {
		AppendMessage(ctx context.Context, message *Message) error
		ListMessages(ctx context.Context, roomID string) ([]*Message, error)
	}
)

// DefaultFilters is the taxonomy seeded into stores that have no external
// source for it.
var DefaultFilters = []Filter{
	{ID: "format-poster", Category: "format", Name: "Poster"},
	{ID: "format-flyer", Category: "format", Name: "Flyer"},
	{ID: "format-social", Category: "format", Name: "Social post"},
	{ID: "format-banner", Category: "format", Name: "Banner"},
	{ID: "theme-business", Category: "theme", Name: "Business"},
	{ID: "theme-event", Category: "theme", Name: "Event"},
	{ID: "theme-seasonal", Category: "theme", Name: "Seasonal"},
}
