package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"portaal/core"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"templates", "projects", "assets", "messages"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create base directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// safeJoin joins an untrusted id under a base directory, rejecting path
// traversal.
func safeJoin(base, id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid id: must be a plain name")
	}
	path := filepath.Join(base, id)
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absBase) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absPath, nil
}

// TemplateStore implementation
func (s *fsStore) templatesPath() string {
	return filepath.Join(s.basePath, "templates")
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Template, error) {
	all, err := s.readTemplates()
	if err != nil {
		return nil, err
	}
	templates := make([]*core.Template, 0, len(all))
	for _, t := range all {
		if t.UserID != userID {
			continue
		}
		t.Data = nil
		templates = append(templates, t)
	}
	logrus.WithField("user_id", userID).Infof("Listed %d templates", len(templates))
	return templates, nil
}

func (s *fsStore) Browse(ctx context.Context, filterID string) ([]*core.Template, error) {
	all, err := s.readTemplates()
	if err != nil {
		return nil, err
	}
	templates := make([]*core.Template, 0, len(all))
	for _, t := range all {
		if filterID != "" && !containsFilter(t.FilterIDs, filterID) {
			continue
		}
		t.Data = nil
		templates = append(templates, t)
	}
	return templates, nil
}

func (s *fsStore) readTemplates() ([]*core.Template, error) {
	files, err := os.ReadDir(s.templatesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Template{}, nil
		}
		return nil, err
	}

	templates := make([]*core.Template, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.templatesPath(), file.Name()))
		if err != nil {
			logrus.WithError(err).Warnf("Failed to read template file %s, skipping", file.Name())
			continue
		}
		var t storedTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			logrus.WithError(err).Warnf("Failed to unmarshal template file %s, skipping", file.Name())
			continue
		}
		templates = append(templates, t.template())
	}
	return templates, nil
}

func (s *fsStore) Find(ctx context.Context, id string) (*core.Template, error) {
	path, err := safeJoin(s.templatesPath(), id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template with id %s not found", id)
		}
		return nil, err
	}
	var t storedTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t.template(), nil
}

func (s *fsStore) SaveTemplate(ctx context.Context, template *core.Template) error {
	path, err := safeJoin(s.templatesPath(), template.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID})

	if existing, err := s.Find(ctx, template.ID); err == nil {
		if existing.UserID != template.UserID {
			return fmt.Errorf("template with id %s not found for user %s", template.ID, template.UserID)
		}
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = time.Now()
	}
	template.UpdatedAt = time.Now()

	data, err := json.Marshal(newStoredTemplate(template))
	if err != nil {
		log.WithError(err).Error("Failed to marshal template for saving")
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write template file")
		return err
	}
	return nil
}

func (s *fsStore) DeleteTemplate(ctx context.Context, userID, id string) error {
	existing, err := s.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("template with id %s not found for user %s", id, userID)
	}
	if existing.UserID != userID {
		return fmt.Errorf("template with id %s not found for user %s", id, userID)
	}
	path, err := safeJoin(s.templatesPath(), id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ProjectStore implementation
func (s *fsStore) userProjectsPath(userID string) string {
	return filepath.Join(s.basePath, "projects", userID)
}

func (s *fsStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	userPath := s.userProjectsPath(userID)
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Project{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	projects := make([]*core.Project, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read project file %s, skipping", file.Name())
			continue
		}
		var p storedProject
		if err := json.Unmarshal(data, &p); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal project file %s, skipping", file.Name())
			continue
		}
		project := p.project()
		project.Data = nil
		projects = append(projects, project)
	}

	log.Infof("Listed %d projects", len(projects))
	return projects, nil
}

func (s *fsStore) GetProject(ctx context.Context, userID, id string) (*core.Project, error) {
	path, err := safeJoin(s.userProjectsPath(userID), id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	var p storedProject
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p.project(), nil
}

func (s *fsStore) SaveProject(ctx context.Context, project *core.Project) error {
	userPath := s.userProjectsPath(project.UserID)
	if err := os.MkdirAll(userPath, 0755); err != nil {
		return err
	}
	path, err := safeJoin(userPath, project.ID)
	if err != nil {
		return err
	}

	if existing, err := s.GetProject(ctx, project.UserID, project.ID); err == nil {
		project.CreatedAt = existing.CreatedAt
	} else {
		project.CreatedAt = time.Now()
	}
	project.UpdatedAt = time.Now()

	data, err := json.Marshal(newStoredProject(project))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *fsStore) DeleteProject(ctx context.Context, userID, id string) error {
	path, err := safeJoin(s.userProjectsPath(userID), id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			// If it doesn't exist, the goal is achieved.
			return nil
		}
		return err
	}
	return nil
}

// FilterStore implementation
func (s *fsStore) ListFilters(ctx context.Context) ([]core.Filter, error) {
	filters := make([]core.Filter, len(core.DefaultFilters))
	copy(filters, core.DefaultFilters)
	return filters, nil
}

// AssetStore implementation
func (s *fsStore) assetsPath() string {
	return filepath.Join(s.basePath, "assets")
}

func (s *fsStore) SaveAsset(ctx context.Context, asset *core.Asset) error {
	path, err := safeJoin(s.assetsPath(), asset.Key)
	if err != nil {
		return err
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *fsStore) GetAsset(ctx context.Context, key string) (*core.Asset, error) {
	path, err := safeJoin(s.assetsPath(), key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("asset with key %s not found", key)
		}
		return nil, err
	}
	var asset core.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *fsStore) DeleteAsset(ctx context.Context, key string) error {
	path, err := safeJoin(s.assetsPath(), key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MessageStore implementation. Each room's log is one JSON file, rewritten
// on append; chat volume makes this acceptable.
func (s *fsStore) messagesPath() string {
	return filepath.Join(s.basePath, "messages")
}

func (s *fsStore) AppendMessage(ctx context.Context, message *core.Message) error {
	if message.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	path, err := safeJoin(s.messagesPath(), message.RoomID+".json")
	if err != nil {
		return err
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}

	messages, err := s.ListMessages(ctx, message.RoomID)
	if err != nil {
		return err
	}
	messages = append(messages, message)

	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *fsStore) ListMessages(ctx context.Context, roomID string) ([]*core.Message, error) {
	path, err := safeJoin(s.messagesPath(), roomID+".json")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Message{}, nil
		}
		return nil, err
	}
	var messages []*core.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// storedTemplate and storedProject add the fields the JSON API omits
// (ownership) so a file round-trips completely.
type storedTemplate struct {
	core.Template
	OwnerID string `json:"ownerId"`
}

func newStoredTemplate(t *core.Template) *storedTemplate {
	return &storedTemplate{Template: *t, OwnerID: t.UserID}
}

func (t *storedTemplate) template() *core.Template {
	out := t.Template
	out.UserID = t.OwnerID
	return &out
}

type storedProject struct {
	core.Project
	OwnerID string `json:"ownerId"`
}

func newStoredProject(p *core.Project) *storedProject {
	return &storedProject{Project: *p, OwnerID: p.UserID}
}

func (p *storedProject) project() *core.Project {
	out := p.Project
	out.UserID = p.OwnerID
	return &out
}

func containsFilter(ids []string, filterID string) bool {
	for _, id := range ids {
		if id == filterID {
			return true
		}
	}
	return false
}
