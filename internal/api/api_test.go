package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
)

type env struct {
	db     *catalog.DB
	router http.Handler
	owner  string
	other  string
}

// testEnv sets up a temp SQLite catalog, service and router with two users.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) *env {
	t.Helper()
	db := testutil.TestDB(t)
	svc := catalogservice.NewService(db, nil)
	return &env{
		db:     db,
		router: NewRouter(svc, authEnabled, authToken, "", sseHandler),
		owner:  testutil.TestUser(t, db, "owner").ID,
		other:  testutil.TestUser(t, db, "other").ID,
	}
}

func (e *env) do(t *testing.T, method, path, caller string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(DefaultIdentityHeader, caller)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeObject(t *testing.T, w *httptest.ResponseRecorder) *models.ObjectDef {
	t.Helper()
	var resp ObjectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (body %s)", err, w.Body.String())
	}
	if resp.Object == nil {
		t.Fatalf("response has no object: %s", w.Body.String())
	}
	return resp.Object
}

func (e *env) createObject(t *testing.T, name string, attrs ...string) *models.ObjectDef {
	t.Helper()
	list := make([]map[string]any, 0, len(attrs))
	for _, a := range attrs {
		list = append(list, map[string]any{"name": a, "type": "string", "required": false})
	}
	w := e.do(t, http.MethodPost, "/objects", e.owner, map[string]any{
		"name": name, "description": "test", "version": "1.0", "attributes": list,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeObject(t, w)
}

func attrNames(o *models.ObjectDef) []string {
	out := make([]string, len(o.Attributes))
	for i, a := range o.Attributes {
		out[i] = a.Name
	}
	return out
}

func TestCreateAndGetObject(t *testing.T) {
	e := testEnv(t, "")
	created := e.createObject(t, "Customer", "email")

	w := e.do(t, http.MethodGet, "/objects/"+created.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `"1"` {
		t.Errorf("ETag = %q, want \"1\"", got)
	}
	obj := decodeObject(t, w)
	if obj.Name != "Customer" || obj.Creator.Username != "owner" {
		t.Errorf("object = %+v", obj)
	}
	if len(obj.Attributes) != 1 || obj.Methods == nil || obj.FromRelationships == nil {
		t.Errorf("lists = %+v", obj)
	}
}

func TestGetObject_NotFound(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/objects/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing object = %d, want 404", w.Code)
	}
}

func TestCreateObject_Duplicate(t *testing.T) {
	e := testEnv(t, "")
	e.createObject(t, "Customer")

	w := e.do(t, http.MethodPost, "/objects", e.owner, map[string]any{
		"name": "CUSTOMER", "description": "again", "version": "1.0",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate create = %d, want 400", w.Code)
	}
}

func TestCreateObject_NoCaller(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPost, "/objects", "", map[string]any{
		"name": "A", "description": "d", "version": "1",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("anonymous create = %d, want 403", w.Code)
	}
}

func TestUpdateAttributes_Reconciles(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer", "a", "b")

	w := e.do(t, http.MethodPut, "/objects/"+obj.ID+"/attributes", e.owner, map[string]any{
		"attributes": []map[string]any{
			{"id": obj.Attributes[0].ID, "name": "a2", "type": "string", "required": true},
			{"name": "c", "type": "int", "required": false, "defaultValue": "0"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeObject(t, w)
	if names := attrNames(got); len(names) != 2 || names[0] != "a2" || names[1] != "c" {
		t.Errorf("attributes = %v, want [a2 c]", names)
	}
	if got.Attributes[0].ID != obj.Attributes[0].ID {
		t.Error("updated attribute lost its id")
	}
	if w.Header().Get("ETag") != `"2"` {
		t.Errorf("ETag = %q", w.Header().Get("ETag"))
	}
}

func TestUpdateAttributes_ForeignCallerForbidden(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer", "a")

	w := e.do(t, http.MethodPut, "/objects/"+obj.ID+"/attributes", e.other, map[string]any{
		"attributes": []map[string]any{{"name": "hijack", "type": "string", "required": false}},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign update = %d, want 403", w.Code)
	}

	w = e.do(t, http.MethodGet, "/objects/"+obj.ID, "", nil)
	if names := attrNames(decodeObject(t, w)); len(names) != 1 || names[0] != "a" {
		t.Errorf("attributes after forbidden update = %v", names)
	}
}

func TestUpdateAttributes_NotFound(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPut, "/objects/ghost/attributes", e.owner, map[string]any{
		"attributes": []map[string]any{},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestUpdateAttributes_ValidationDetails(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer", "a")

	w := e.do(t, http.MethodPut, "/objects/"+obj.ID+"/attributes", e.owner, map[string]any{
		"attributes": []map[string]any{
			{"name": "ok", "type": "string", "required": false},
			{"name": "", "type": "string", "required": false},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid update = %d, want 400", w.Code)
	}
	var resp errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp.Details["attributes[1].name"]; !ok {
		t.Errorf("details = %v", resp.Details)
	}

	w = e.do(t, http.MethodGet, "/objects/"+obj.ID, "", nil)
	if names := attrNames(decodeObject(t, w)); len(names) != 1 || names[0] != "a" {
		t.Errorf("attributes after rejected update = %v", names)
	}
}

func TestUpdateAttributes_BadBodies(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer")
	path := "/objects/" + obj.ID + "/attributes"

	cases := map[string]string{
		"not json":       "{",
		"unknown field":  `{"attributes": [], "extra": 1}`,
		"missing list":   `{}`,
		"null list":      `{"attributes": null}`,
		"trailing value": `{"attributes": []} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := e.do(t, http.MethodPut, path, e.owner, body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestUpdateAttributes_IfMatch(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer", "a")
	path := "/objects/" + obj.ID + "/attributes"
	body := map[string]any{"attributes": []map[string]any{}}

	w := e.do(t, http.MethodPut, path, e.owner, body, "If-Match", `"7"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}
	w = e.do(t, http.MethodPut, path, e.owner, body, "If-Match", "abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed If-Match = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodPut, path, e.owner, body, "If-Match", `"1"`)
	if w.Code != http.StatusOK {
		t.Errorf("current If-Match = %d, want 200", w.Code)
	}
}

func TestUpdateAttributes_ForeignIDIsInternalError(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer", "a")
	other := e.createObject(t, "Invoice", "total")

	w := e.do(t, http.MethodPut, "/objects/"+obj.ID+"/attributes", e.owner, map[string]any{
		"attributes": []map[string]any{
			{"id": other.Attributes[0].ID, "name": "x", "type": "string", "required": false},
		},
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("foreign id = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "belong") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/objects/"+obj.ID, "", nil)
	if names := attrNames(decodeObject(t, w)); len(names) != 1 || names[0] != "a" {
		t.Errorf("attributes after rollback = %v", names)
	}
}

func TestUpdateMethods(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer")
	path := "/objects/" + obj.ID + "/methods"

	w := e.do(t, http.MethodPut, path, e.owner, map[string]any{
		"methods": []map[string]any{{
			"name": "save", "description": "", "visibility": "PUBLIC", "returnType": nil,
			"parameters": []map[string]any{{"name": "p1", "type": "int", "isOptional": false}},
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create methods = %d, body = %s", w.Code, w.Body.String())
	}
	m := decodeObject(t, w).Methods[0]

	w = e.do(t, http.MethodPut, path, e.owner, map[string]any{
		"methods": []map[string]any{{
			"id": m.ID, "name": "save", "visibility": "PRIVATE",
			"parameters": []map[string]any{{"name": "x", "type": "string", "isOptional": true}},
		}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update methods = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeObject(t, w).Methods
	if len(got) != 1 || got[0].ID != m.ID || len(got[0].Parameters) != 1 || got[0].Parameters[0].Name != "x" {
		t.Errorf("methods = %+v", got)
	}

	w = e.do(t, http.MethodPut, path, e.other, map[string]any{"methods": []map[string]any{}})
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign methods update = %d, want 403", w.Code)
	}
	w = e.do(t, http.MethodPut, path, e.owner, map[string]any{
		"methods": []map[string]any{{"name": "bad", "visibility": "PUBLIC"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("method without parameters = %d, want 400", w.Code)
	}
}

func TestPatchAndHistory(t *testing.T) {
	e := testEnv(t, "")
	obj := e.createObject(t, "Customer")

	w := e.do(t, http.MethodPatch, "/objects/"+obj.ID, e.owner, map[string]any{"description": "updated"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeObject(t, w); got.Description != "updated" {
		t.Errorf("description = %q", got.Description)
	}

	w = e.do(t, http.MethodGet, "/objects/"+obj.ID+"/history", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d", w.Code)
	}
	var hist HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &hist)
	if len(hist.History) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist.History))
	}
	var changes struct {
		Previous struct {
			Description string `json:"description"`
		} `json:"previous"`
		New struct {
			Description string `json:"description"`
		} `json:"new"`
	}
	if err := json.Unmarshal(hist.History[0].Changes, &changes); err != nil {
		t.Fatalf("changes is not a JSON object: %s", hist.History[0].Changes)
	}
	if changes.Previous.Description != "test" || changes.New.Description != "updated" {
		t.Errorf("changes = %+v", changes)
	}

	w = e.do(t, http.MethodGet, "/objects/nope/history", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("history of missing object = %d, want 404", w.Code)
	}
}

func TestRelationshipsAndInstances(t *testing.T) {
	e := testEnv(t, "")
	car := e.createObject(t, "Car", "color")
	engine := e.createObject(t, "Engine")

	w := e.do(t, http.MethodPost, "/objects/"+car.ID+"/relationships", e.owner, map[string]any{
		"toObjectId": engine.ID, "type": "COMPOSITION", "description": "has",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("relationship = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/objects/"+engine.ID, "", nil)
	eng := decodeObject(t, w)
	if len(eng.ToRelationships) != 1 || eng.ToRelationships[0].FromObject.Name != "Car" {
		t.Errorf("toRelationships = %+v", eng.ToRelationships)
	}

	w = e.do(t, http.MethodPost, "/objects/"+car.ID+"/instances", e.other, map[string]any{
		"name": "my car", "values": map[string]string{"color": "red"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("instance = %d, body = %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/objects/"+car.ID+"/instances", e.other, map[string]any{
		"name": "bad", "values": map[string]string{"wheels": "4"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("instance with unknown attribute = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodGet, "/objects/"+car.ID+"/instances", "", nil)
	var list InstanceListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Instances) != 1 {
		t.Errorf("instances = %d, want 1", len(list.Instances))
	}

	w = e.do(t, http.MethodGet, "/browse", "", nil)
	var browse BrowseResponse
	_ = json.Unmarshal(w.Body.Bytes(), &browse)
	if len(browse.Instances) != 1 || browse.Instances[0].ObjectDef.Name != "Car" {
		t.Errorf("browse = %s", w.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnv(t, "")
	e.createObject(t, "Customer")
	e.createObject(t, "Invoice")

	w := e.do(t, http.MethodGet, "/search?q=cus", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Objects) != 1 || resp.Objects[0].Name != "Customer" || resp.Objects[0].Score != 6 {
		t.Errorf("search = %s", w.Body.String())
	}
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/search", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestDesigns(t *testing.T) {
	e := testEnv(t, "")
	e.createObject(t, "A")
	e.createObject(t, "B")

	w := e.do(t, http.MethodGet, "/designs?count=true", e.owner, nil)
	var count CountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &count)
	if count.Count != 2 {
		t.Errorf("count = %d, want 2", count.Count)
	}

	w = e.do(t, http.MethodGet, "/designs?userId="+e.other, "", nil)
	var designs DesignsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &designs)
	if w.Code != http.StatusOK || len(designs.Objects) != 0 || designs.Objects == nil {
		t.Errorf("designs of other = %s", w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/designs", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("designs without user = %d, want 400", w.Code)
	}
}

func TestCustomIdentityHeader(t *testing.T) {
	db := testutil.TestDB(t)
	owner := testutil.TestUser(t, db, "owner")
	router := NewRouter(catalogservice.NewService(db, nil), false, "", "X-Caller", nil)

	body := `{"name":"A","description":"d","version":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/objects", strings.NewReader(body))
	req.Header.Set("X-Caller", owner.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("create with custom header = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")
	w := e.do(t, http.MethodPost, "/objects", e.owner,
		map[string]any{"name": "A", "description": "d", "version": "1"},
		"Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")
	w := e.do(t, http.MethodGet, "/browse", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")
	w := e.do(t, http.MethodGet, "/browse", "", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/browse", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// Minimal SSE handler stub: writes headers and blocks until the request ends.
func TestObjectVersionsByName(t *testing.T) {
	e := testEnv(t, "")
	first := e.createObject(t, "Auto")
	w := e.do(t, http.MethodPost, "/objects", e.other, map[string]any{
		"name": "auto", "description": "second", "version": "2.0",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create v2 = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/objects/name/AUTO", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("versions = %d, body = %s", w.Code, w.Body.String())
	}
	var resp VersionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Objects) != 2 {
		t.Fatalf("versions = %d, want 2", len(resp.Objects))
	}
	if resp.Objects[0].Version != "1.0" || resp.Objects[0].Creator.Username != "owner" {
		t.Errorf("first version = %+v", resp.Objects[0])
	}
	if resp.Objects[1].Version != "2.0" || resp.Objects[1].Creator.Username != "other" {
		t.Errorf("second version = %+v", resp.Objects[1])
	}

	w = e.do(t, http.MethodPatch, "/objects/"+first.ID, e.owner, map[string]any{"name": "Car"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/objects/name/Auto", "", nil)
	resp = VersionsResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Objects) != 1 || resp.Objects[0].Version != "2.0" {
		t.Errorf("versions after rename = %+v", resp.Objects)
	}

	w = e.do(t, http.MethodGet, "/objects/name/Truck", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown name = %d, want 404", w.Code)
	}
}

func TestUnknownRoutesAnswerJSON(t *testing.T) {
	e := testEnv(t, "")
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodDelete, "/objects", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/objects/abc/attributes", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, "", nil)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
			var body errResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

var stubSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, true, "secret", stubSSE)
	w := e.do(t, http.MethodGet, "/events", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, true, "tok", stubSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
