package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"portaal/core"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// validKey rejects ids that would escape their prefix.
func validKey(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("invalid id: must not be empty or a dot directory")
	}
	if path.Base(id) != id {
		return fmt.Errorf("invalid id: must not be a path")
	}
	return nil
}

func (s *s3Store) getJSON(ctx context.Context, key string, out any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read object data: %v", err)
	}
	return json.Unmarshal(data, out)
}

func (s *s3Store) putJSON(ctx context.Context, key string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *s3Store) listJSON(ctx context.Context, prefix string, each func(data []byte)) error {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return err
	}
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}
		each(data)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

// storedTemplate and storedProject carry ownership, which the API's JSON
// shape deliberately omits.
type storedTemplate struct {
	core.Template
	OwnerID string `json:"ownerId"`
}

type storedProject struct {
	core.Project
	OwnerID string `json:"ownerId"`
}

// TemplateStore implementation
func (s *s3Store) templateKey(id string) string {
	return path.Join("templates", id)
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Template, error) {
	templates := make([]*core.Template, 0)
	err := s.listJSON(ctx, "templates/", func(data []byte) {
		var t storedTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			log.Printf("warn: failed to unmarshal template: %v", err)
			return
		}
		if t.OwnerID != userID {
			return
		}
		out := t.Template
		out.UserID = t.OwnerID
		out.Data = nil
		templates = append(templates, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for user %s: %v", userID, err)
	}
	return templates, nil
}

func (s *s3Store) Browse(ctx context.Context, filterID string) ([]*core.Template, error) {
	templates := make([]*core.Template, 0)
	err := s.listJSON(ctx, "templates/", func(data []byte) {
		var t storedTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			return
		}
		if filterID != "" && !containsFilter(t.FilterIDs, filterID) {
			return
		}
		out := t.Template
		out.UserID = t.OwnerID
		out.Data = nil
		templates = append(templates, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to browse templates: %v", err)
	}
	return templates, nil
}

func (s *s3Store) Find(ctx context.Context, id string) (*core.Template, error) {
	if err := validKey(id); err != nil {
		return nil, err
	}
	var t storedTemplate
	if err := s.getJSON(ctx, s.templateKey(id), &t); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("template with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get template %s: %v", id, err)
	}
	out := t.Template
	out.UserID = t.OwnerID
	return &out, nil
}

func (s *s3Store) SaveTemplate(ctx context.Context, template *core.Template) error {
	if err := validKey(template.ID); err != nil {
		return err
	}

	// Preserve CreatedAt on update and reject cross-user overwrites.
	if existing, err := s.Find(ctx, template.ID); err == nil {
		if existing.UserID != template.UserID {
			return fmt.Errorf("template with id %s not found for user %s", template.ID, template.UserID)
		}
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = time.Now()
	}
	template.UpdatedAt = time.Now()

	return s.putJSON(ctx, s.templateKey(template.ID), &storedTemplate{
		Template: *template,
		OwnerID:  template.UserID,
	})
}

func (s *s3Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	existing, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return fmt.Errorf("template with id %s not found for user %s", id, userID)
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.templateKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %v", id, err)
	}
	return nil
}

// ProjectStore implementation
func (s *s3Store) projectKey(userID, id string) string {
	return path.Join("projects", userID, id)
}

func (s *s3Store) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	projects := make([]*core.Project, 0)
	err := s.listJSON(ctx, "projects/"+userID+"/", func(data []byte) {
		var p storedProject
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("warn: failed to unmarshal project: %v", err)
			return
		}
		out := p.Project
		out.UserID = p.OwnerID
		out.Data = nil
		projects = append(projects, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user %s: %v", userID, err)
	}
	return projects, nil
}

func (s *s3Store) GetProject(ctx context.Context, userID, id string) (*core.Project, error) {
	if err := validKey(id); err != nil {
		return nil, err
	}
	var p storedProject
	if err := s.getJSON(ctx, s.projectKey(userID, id), &p); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("project with id %s not found for user %s", id, userID)
		}
		return nil, fmt.Errorf("failed to get project %s: %v", id, err)
	}
	out := p.Project
	out.UserID = p.OwnerID
	return &out, nil
}

func (s *s3Store) SaveProject(ctx context.Context, project *core.Project) error {
	if err := validKey(project.ID); err != nil {
		return err
	}

	if existing, err := s.GetProject(ctx, project.UserID, project.ID); err == nil {
		project.CreatedAt = existing.CreatedAt
	} else {
		project.CreatedAt = time.Now()
	}
	project.UpdatedAt = time.Now()

	return s.putJSON(ctx, s.projectKey(project.UserID, project.ID), &storedProject{
		Project: *project,
		OwnerID: project.UserID,
	})
}

func (s *s3Store) DeleteProject(ctx context.Context, userID, id string) error {
	if err := validKey(id); err != nil {
		return err
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.projectKey(userID, id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %v", id, err)
	}
	return nil
}

// FilterStore implementation
func (s *s3Store) ListFilters(ctx context.Context) ([]core.Filter, error) {
	filters := make([]core.Filter, len(core.DefaultFilters))
	copy(filters, core.DefaultFilters)
	return filters, nil
}

// AssetStore implementation
func (s *s3Store) assetKey(key string) string {
	return path.Join("assets", key)
}

func (s *s3Store) SaveAsset(ctx context.Context, asset *core.Asset) error {
	if err := validKey(asset.Key); err != nil {
		return err
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	return s.putJSON(ctx, s.assetKey(asset.Key), asset)
}

func (s *s3Store) GetAsset(ctx context.Context, key string) (*core.Asset, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	var asset core.Asset
	if err := s.getJSON(ctx, s.assetKey(key), &asset); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("asset with key %s not found", key)
		}
		return nil, fmt.Errorf("failed to get asset %s: %v", key, err)
	}
	return &asset, nil
}

func (s *s3Store) DeleteAsset(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.assetKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %v", key, err)
	}
	return nil
}

// MessageStore implementation. Each room's log is one JSON object,
// rewritten on append.
func (s *s3Store) messageKey(roomID string) string {
	return path.Join("messages", roomID)
}

func (s *s3Store) AppendMessage(ctx context.Context, message *core.Message) error {
	if err := validKey(message.RoomID); err != nil {
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
	return s.putJSON(ctx, s.messageKey(message.RoomID), messages)
}

func (s *s3Store) ListMessages(ctx context.Context, roomID string) ([]*core.Message, error) {
	if err := validKey(roomID); err != nil {
		return nil, err
	}
	var messages []*core.Message
	if err := s.getJSON(ctx, s.messageKey(roomID), &messages); err != nil {
		if isNotFound(err) {
			return []*core.Message{}, nil
		}
		return nil, fmt.Errorf("failed to list messages for room %s: %v", roomID, err)
	}
	return messages, nil
}

func containsFilter(ids []string, filterID string) bool {
	for _, id := range ids {
		if id == filterID {
			return true
		}
	}
	return false
}
