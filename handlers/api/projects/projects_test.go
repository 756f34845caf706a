package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"portaal/core"
	"portaal/handlers/auth"
	"portaal/middleware"
	"portaal/stores"
	"portaal/stores/memory"
)

func authedRequest(method, target, body, subject string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	claims := &auth.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Login:            subject,
	}
	ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

func projectRouter() (*chi.Mux, stores.Store) {
	store := memory.NewStore()
	r := chi.NewRouter()
	r.Get("/api/projects", HandleListProjects(store))
	r.Post("/api/projects", HandleCreateProject(store))
	r.Get("/api/projects/{id}", HandleGetProject(store))
	r.Put("/api/projects/{id}", HandleSaveProject(store))
	r.Patch("/api/projects/{id}", HandleRenameProject(store))
	r.Delete("/api/projects/{id}", HandleDeleteProject(store))
	return r, store
}

func TestHandleCreateProject_Blank(t *testing.T) {
	r, _ := projectRouter()

	req := authedRequest(http.MethodPost, "/api/projects", `{"name":"My design"}`, "proj-h-user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created core.Project
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" || created.Name != "My design" {
		t.Errorf("unexpected created project: %+v", created)
	}
	if created.TemplateID != "" {
		t.Error("blank project should carry no template id")
	}
}

func TestHandleCreateProject_FromTemplate(t *testing.T) {
	r, store := projectRouter()
	doc := []byte(`{"frames":[],"links":[]}`)
	store.SaveTemplate(context.Background(), &core.Template{
		ID: "tpl-src-1", UserID: "designer-1", Name: "Poster", Data: doc,
	})

	req := authedRequest(http.MethodPost, "/api/projects", `{"name":"From poster","templateId":"tpl-src-1"}`, "proj-h-user-2")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created core.Project
	json.NewDecoder(rec.Body).Decode(&created)
	if created.TemplateID != "tpl-src-1" || created.TemplateOwnerID != "designer-1" {
		t.Errorf("template provenance lost: %+v", created)
	}

	saved, err := store.GetProject(context.Background(), "proj-h-user-2", created.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if string(saved.Data) != string(doc) {
		t.Error("template document was not copied into the project")
	}
}

func TestHandleCreateProject_TemplateMissing(t *testing.T) {
	r, _ := projectRouter()

	req := authedRequest(http.MethodPost, "/api/projects", `{"name":"X","templateId":"nope"}`, "proj-h-user-3")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleGetProject_EditableFlags(t *testing.T) {
	r, store := projectRouter()
	ctx := context.Background()

	store.SaveProject(ctx, &core.Project{
		ID: "proj-own", UserID: "get-user", Name: "Own work", Data: []byte("{}"),
	})
	store.SaveProject(ctx, &core.Project{
		ID: "proj-tpl", UserID: "get-user", Name: "From template",
		TemplateID: "t", TemplateOwnerID: "someone-else", Data: []byte("{}"),
	})

	var resp struct {
		Editable bool `json:"editable"`
	}

	req := authedRequest(http.MethodGet, "/api/projects/proj-own", "", "get-user")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Editable {
		t.Error("own blank project must be editable")
	}

	req = authedRequest(http.MethodGet, "/api/projects/proj-tpl", "", "get-user")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Editable {
		t.Error("project from someone else's template must not be structurally editable")
	}
}

func TestHandleGetProject_OtherUsersProject(t *testing.T) {
	r, store := projectRouter()
	store.SaveProject(context.Background(), &core.Project{
		ID: "proj-private", UserID: "owner-x", Name: "Private",
	})

	req := authedRequest(http.MethodGet, "/api/projects/proj-private", "", "snooper")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleSaveProject_WholesaleReplace(t *testing.T) {
	r, store := projectRouter()
	store.SaveProject(context.Background(), &core.Project{
		ID: "proj-save", UserID: "save-user", Name: "X", Data: []byte(`{"frames":[],"links":[]}`),
	})

	newDoc := `{"frames":[{"id":"f1","type":"frame","name":"Frame 1","x":0,"y":0,"width":50,"height":50,"fill":{"r":0,"g":0,"b":0},"opacity":100,"elements":[]}],"links":[]}`
	req := authedRequest(http.MethodPut, "/api/projects/proj-save", newDoc, "save-user")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	saved, _ := store.GetProject(context.Background(), "save-user", "proj-save")
	if string(saved.Data) != newDoc {
		t.Error("document was not replaced")
	}
}

func TestHandleSaveProject_InvalidDocument(t *testing.T) {
	r, store := projectRouter()
	store.SaveProject(context.Background(), &core.Project{
		ID: "proj-save-bad", UserID: "save-user-2", Name: "X", Data: []byte("{}"),
	})

	req := authedRequest(http.MethodPut, "/api/projects/proj-save-bad", "{broken", "save-user-2")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRenameProject(t *testing.T) {
	r, store := projectRouter()
	store.SaveProject(context.Background(), &core.Project{
		ID: "proj-rename", UserID: "rename-user", Name: "Old",
	})

	req := authedRequest(http.MethodPatch, "/api/projects/proj-rename", `{"name":"New"}`, "rename-user")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	saved, _ := store.GetProject(context.Background(), "rename-user", "proj-rename")
	if saved.Name != "New" {
		t.Errorf("name = %q, want New", saved.Name)
	}
}

func TestHandleDeleteProject(t *testing.T) {
	r, store := projectRouter()
	store.SaveProject(context.Background(), &core.Project{
		ID: "proj-del", UserID: "del-user", Name: "X",
	})

	req := authedRequest(http.MethodDelete, "/api/projects/proj-del", "", "del-user")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if _, err := store.GetProject(context.Background(), "del-user", "proj-del"); err == nil {
		t.Error("project should be gone after delete")
	}
}
