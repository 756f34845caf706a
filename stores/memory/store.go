package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"portaal/core"
)

var (
	// savedTemplates is keyed by template id; ownership lives on the
	// template itself so Find and Browse can cross user boundaries.
	savedTemplates = make(map[string]*core.Template)
	// savedProjects is a map where the key is userID, and the value is
	// another map keyed by project id.
	savedProjects = make(map[string]map[string]*core.Project)
	savedAssets   = make(map[string]*core.Asset)
	savedMessages = make(map[string][]*core.Message)
	mu            sync.RWMutex
)

// memStore implements every Portaal store interface in memory.
type memStore struct{}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{}
}

// List returns metadata for all templates owned by a user. Part of the TemplateStore interface.
func (s *memStore) List(ctx context.Context, userID string) ([]*core.Template, error) {
	mu.RLock()
	defer mu.RUnlock()

	templates := make([]*core.Template, 0)
	for _, t := range savedTemplates {
		if t.UserID != userID {
			continue
		}
		templates = append(templates, templateMeta(t))
	}

	logrus.WithField("user_id", userID).Infof("Listed %d templates", len(templates))
	return templates, nil
}

// Browse returns metadata for every template, optionally narrowed to a filter id.
func (s *memStore) Browse(ctx context.Context, filterID string) ([]*core.Template, error) {
	mu.RLock()
	defer mu.RUnlock()

	templates := make([]*core.Template, 0)
	for _, t := range savedTemplates {
		if filterID != "" && !hasFilter(t, filterID) {
			continue
		}
		templates = append(templates, templateMeta(t))
	}
	return templates, nil
}

// Find returns a template by id regardless of owner, including its document data.
func (s *memStore) Find(ctx context.Context, id string) (*core.Template, error) {
	mu.RLock()
	defer mu.RUnlock()

	t, ok := savedTemplates[id]
	if !ok {
		logrus.WithField("template_id", id).Warn("Template with specified ID not found")
		return nil, fmt.Errorf("template with id %s not found", id)
	}
	cp := *t
	return &cp, nil
}

// SaveTemplate creates or updates a template for its owner.
func (s *memStore) SaveTemplate(ctx context.Context, template *core.Template) error {
	mu.Lock()
	defer mu.Unlock()

	if template.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if template.ID == "" {
		return fmt.Errorf("Template ID cannot be empty for save operation")
	}

	now := time.Now()
	if existing, exists := savedTemplates[template.ID]; exists {
		if existing.UserID != template.UserID {
			return fmt.Errorf("template with id %s not found for user %s", template.ID, template.UserID)
		}
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	savedTemplates[template.ID] = template
	logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID}).Info("Template saved successfully")
	return nil
}

// DeleteTemplate removes a template, ensuring it belongs to the user.
func (s *memStore) DeleteTemplate(ctx context.Context, userID, id string) error {
	mu.Lock()
	defer mu.Unlock()

	t, ok := savedTemplates[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("template with id %s not found for user %s", id, userID)
	}
	delete(savedTemplates, id)
	return nil
}

// ListProjects returns metadata for all projects owned by a user.
func (s *memStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	mu.RLock()
	defer mu.RUnlock()

	userProjects, ok := savedProjects[userID]
	if !ok {
		return []*core.Project{}, nil // No projects for this user, return empty slice
	}

	projects := make([]*core.Project, 0, len(userProjects))
	for _, p := range userProjects {
		// Important: copy without the large Data field for the list view.
		projects = append(projects, &core.Project{
			ID:              p.ID,
			UserID:          p.UserID,
			Name:            p.Name,
			TemplateID:      p.TemplateID,
			TemplateOwnerID: p.TemplateOwnerID,
			CreatedAt:       p.CreatedAt,
			UpdatedAt:       p.UpdatedAt,
		})
	}

	logrus.WithField("user_id", userID).Infof("Listed %d projects", len(projects))
	return projects, nil
}

// GetProject returns a single project by id, ensuring it belongs to the user.
func (s *memStore) GetProject(ctx context.Context, userID, id string) (*core.Project, error) {
	mu.RLock()
	defer mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": id})

	userProjects, ok := savedProjects[userID]
	if !ok {
		log.Warn("User has no projects")
		return nil, fmt.Errorf("project with id %s not found for user %s", id, userID)
	}
	p, ok := userProjects[id]
	if !ok {
		log.Warn("Project not found for user")
		return nil, fmt.Errorf("project with id %s not found for user %s", id, userID)
	}

	cp := *p
	return &cp, nil
}

// SaveProject creates or updates a project for a user.
func (s *memStore) SaveProject(ctx context.Context, project *core.Project) error {
	mu.Lock()
	defer mu.Unlock()

	if project.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if project.ID == "" {
		return fmt.Errorf("Project ID cannot be empty for save operation")
	}

	userProjects, ok := savedProjects[project.UserID]
	if !ok {
		userProjects = make(map[string]*core.Project)
		savedProjects[project.UserID] = userProjects
	}

	now := time.Now()
	if existing, exists := userProjects[project.ID]; exists {
		project.CreatedAt = existing.CreatedAt
	} else {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	userProjects[project.ID] = project
	logrus.WithFields(logrus.Fields{"user_id": project.UserID, "project_id": project.ID}).Info("Project saved successfully")
	return nil
}

// DeleteProject removes a project, ensuring it belongs to the user.
func (s *memStore) DeleteProject(ctx context.Context, userID, id string) error {
	mu.Lock()
	defer mu.Unlock()

	userProjects, ok := savedProjects[userID]
	if !ok {
		return fmt.Errorf("user %s has no projects", userID)
	}
	if _, ok := userProjects[id]; !ok {
		return fmt.Errorf("project with id %s not found for user %s", id, userID)
	}
	delete(userProjects, id)
	return nil
}

// ListFilters serves the seeded taxonomy. Part of the FilterStore interface.
func (s *memStore) ListFilters(ctx context.Context) ([]core.Filter, error) {
	filters := make([]core.Filter, len(core.DefaultFilters))
	copy(filters, core.DefaultFilters)
	return filters, nil
}

// SaveAsset stores an uploaded image by key. Part of the AssetStore interface.
func (s *memStore) SaveAsset(ctx context.Context, asset *core.Asset) error {
	mu.Lock()
	defer mu.Unlock()

	if asset.Key == "" {
		return fmt.Errorf("asset key cannot be empty")
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	savedAssets[asset.Key] = asset

	logrus.WithFields(logrus.Fields{
		"asset_key":   asset.Key,
		"data_length": len(asset.Data),
	}).Info("Asset saved successfully")
	return nil
}

func (s *memStore) GetAsset(ctx context.Context, key string) (*core.Asset, error) {
	mu.RLock()
	defer mu.RUnlock()

	asset, ok := savedAssets[key]
	if !ok {
		logrus.WithField("asset_key", key).Warn("Asset with specified key not found")
		return nil, fmt.Errorf("asset with key %s not found", key)
	}
	return asset, nil
}

func (s *memStore) DeleteAsset(ctx context.Context, key string) error {
	mu.Lock()
	defer mu.Unlock()

	delete(savedAssets, key)
	return nil
}

// AppendMessage adds one chat message to its room's log. Part of the MessageStore interface.
func (s *memStore) AppendMessage(ctx context.Context, message *core.Message) error {
	mu.Lock()
	defer mu.Unlock()

	if message.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	savedMessages[message.RoomID] = append(savedMessages[message.RoomID], message)
	return nil
}

func (s *memStore) ListMessages(ctx context.Context, roomID string) ([]*core.Message, error) {
	mu.RLock()
	defer mu.RUnlock()

	messages := savedMessages[roomID]
	out := make([]*core.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func templateMeta(t *core.Template) *core.Template {
	return &core.Template{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		FilterIDs: t.FilterIDs,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func hasFilter(t *core.Template, filterID string) bool {
	for _, id := range t.FilterIDs {
		if id == filterID {
			return true
		}
	}
	return false
}
