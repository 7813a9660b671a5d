package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"fabricview/internal/app"
	"fabricview/pkg/storage"
	"fabricview/pkg/store"
)

type testEnv struct {
	server  *httptest.Server
	store   *store.MemoryStore
	objects *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	redisSrv := miniredis.RunT(t)

	memStore := store.NewMemoryStore()
	memObjects := storage.NewMemoryStore()
	core, err := app.New(app.Config{
		PublicBaseURL: "http://localhost:4000",
		JWTSecret:     "test-secret",
		Store:         memStore,
		Objects:       memObjects,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	srv, err := New(Config{
		App:                      core,
		RedisAddr:                redisSrv.Addr(),
		SignupRateLimitPerMinute: 100,
		LoginRateLimitPerMinute:  100,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: memStore, objects: memObjects}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func (e *testEnv) signupAndLogin(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", resp.StatusCode, body)
	}
	resp, body = e.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %s", resp.StatusCode, body)
	}
	var loginBody struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginBody); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if loginBody.Token == "" {
		t.Fatal("login returned empty token")
	}
	return loginBody.Token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@b.c"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password: status = %d", resp.StatusCode)
	}

	resp, body := env.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "dup@example.com", "password": "hunter22",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	if created.ID == "" || created.Email != "dup@example.com" {
		t.Fatalf("unexpected signup payload: %+v", created)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "dup@example.com", "password": "other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup: status = %d", resp.StatusCode)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndLogin(t, "user@example.com", "correct-horse")

	resp, body := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d", resp.StatusCode)
	}
	wrongPassBody := string(body)

	resp, body = env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown email: status = %d", resp.StatusCode)
	}
	if string(body) != wrongPassBody {
		t.Fatalf("login errors differ: %q vs %q", wrongPassBody, body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, http.MethodGet, "/api/presets", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodGet, "/api/presets", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("garbage token: status = %d", resp.StatusCode)
	}
}

func TestPresetLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "weaver@example.com", "threads123")

	settings := json.RawMessage(`{"scale":2.5,"colors":["#fff","#000"],"nested":{"a":1}}`)
	resp, body := env.request(t, http.MethodPost, "/api/presets", token, map[string]any{
		"name":      "Cheetah Large",
		"patternId": "cheetah",
		"settings":  settings,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		PatternID   string          `json:"patternId"`
		PatternKind string          `json:"patternKind"`
		Settings    json.RawMessage `json:"settings"`
		IsPublic    bool            `json:"isPublic"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.PatternKind != "builtin" || created.PatternID != "cheetah" {
		t.Fatalf("unexpected pattern ref: %+v", created)
	}
	if created.IsPublic {
		t.Fatal("new preset should be private")
	}

	// settings must come back byte-for-byte
	resp, body = env.request(t, http.MethodGet, "/api/presets/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body %s", resp.StatusCode, body)
	}
	var fetched struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(body, &fetched); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if !bytes.Equal(fetched.Settings, settings) {
		t.Fatalf("settings changed: got %s, want %s", fetched.Settings, settings)
	}

	// list contains it
	resp, body = env.request(t, http.MethodGet, "/api/presets", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed []json.RawMessage
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("list len = %d, want 1", len(listed))
	}

	// delete, then delete again
	resp, _ = env.request(t, http.MethodDelete, "/api/presets/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodDelete, "/api/presets/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
}

func TestPresetValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "val@example.com", "password1")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"patternId": "p", "settings": map[string]any{}}},
		{"missing pattern", map[string]any{"name": "n", "settings": map[string]any{}}},
		{"settings array", map[string]any{"name": "n", "patternId": "p", "settings": []int{1, 2}}},
		{"settings string", map[string]any{"name": "n", "patternId": "p", "settings": "nope"}},
		{"settings null", map[string]any{"name": "n", "patternId": "p", "settings": nil}},
	}
	for _, tc := range cases {
		resp, body := env.request(t, http.MethodPost, "/api/presets", token, tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, body %s", tc.name, resp.StatusCode, body)
		}
	}
}

func TestPresetOwnerScoping(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signupAndLogin(t, "alice@example.com", "alicepass")
	mallory := env.signupAndLogin(t, "mallory@example.com", "mallorypass")

	resp, body := env.request(t, http.MethodPost, "/api/presets", alice, map[string]any{
		"name": "private", "patternId": "zig", "settings": map[string]any{"x": 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Another caller sees 404, same as a nonexistent id.
	resp, _ = env.request(t, http.MethodGet, "/api/presets/"+created.ID, mallory, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-owner get status = %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodDelete, "/api/presets/"+created.ID, mallory, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-owner delete status = %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/share", mallory, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-owner share status = %d", resp.StatusCode)
	}
}

func TestShareLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "share@example.com", "sharepass")

	resp, body := env.request(t, http.MethodPost, "/api/presets", token, map[string]any{
		"name": "Cheetah Large", "patternId": "cheetah", "settings": map[string]any{"scale": 3},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// resolving before sharing is 404
	resp, _ = env.request(t, http.MethodGet, "/api/share/someslug", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown slug status = %d", resp.StatusCode)
	}

	resp, body = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/share", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share status = %d, body %s", resp.StatusCode, body)
	}
	var shared struct {
		ShareSlug string `json:"shareSlug"`
		ShareURL  string `json:"shareUrl"`
	}
	if err := json.Unmarshal(body, &shared); err != nil {
		t.Fatalf("decode share: %v", err)
	}
	if shared.ShareSlug == "" {
		t.Fatal("empty share slug")
	}
	if !strings.HasSuffix(shared.ShareURL, "/share/"+shared.ShareSlug) {
		t.Fatalf("share url %q does not end with slug", shared.ShareURL)
	}

	// sharing again returns the same slug
	resp, body = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/share", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-share status = %d", resp.StatusCode)
	}
	var reshared struct {
		ShareSlug string `json:"shareSlug"`
	}
	if err := json.Unmarshal(body, &reshared); err != nil {
		t.Fatalf("decode re-share: %v", err)
	}
	if reshared.ShareSlug != shared.ShareSlug {
		t.Fatalf("re-share slug changed: %q vs %q", reshared.ShareSlug, shared.ShareSlug)
	}

	// public resolve works without a token
	resp, body = env.request(t, http.MethodGet, "/api/share/"+shared.ShareSlug, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", resp.StatusCode, body)
	}
	var view struct {
		Name        string          `json:"name"`
		PatternID   string          `json:"patternId"`
		PatternKind string          `json:"patternKind"`
		Settings    json.RawMessage `json:"settings"`
		PatternURL  *string         `json:"patternUrl"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Name != "Cheetah Large" || view.PatternID != "cheetah" || view.PatternKind != "builtin" {
		t.Fatalf("unexpected share view: %+v", view)
	}
	if view.PatternURL != nil {
		t.Fatalf("builtin pattern should have null patternUrl, got %q", *view.PatternURL)
	}

	// unshare hides it again
	resp, _ = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/unshare", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unshare status = %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodGet, "/api/share/"+shared.ShareSlug, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resolve after unshare status = %d", resp.StatusCode)
	}

	// re-share hands out the original slug
	resp, body = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/share", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-share status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &reshared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reshared.ShareSlug != shared.ShareSlug {
		t.Fatalf("slug not retained across unshare: %q vs %q", reshared.ShareSlug, shared.ShareSlug)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) uploadFile(t *testing.T, token, field, filename string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/patterns/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func TestPatternUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "painter@example.com", "brush1234")

	resp, body := env.uploadFile(t, token, "pattern", "my stripes.png", pngBytes(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, body)
	}
	var uploaded struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if uploaded.ID == "" || uploaded.Filename == "" {
		t.Fatalf("unexpected upload payload: %+v", uploaded)
	}
	if strings.Contains(uploaded.Filename, " ") {
		t.Fatalf("filename not sanitized: %q", uploaded.Filename)
	}
	if !strings.HasSuffix(uploaded.URL, "/uploads/"+uploaded.Filename) {
		t.Fatalf("url %q does not reference filename", uploaded.URL)
	}
	if env.objects.Len() != 1 {
		t.Fatalf("object store has %d blobs, want 1", env.objects.Len())
	}

	// list shows it with url
	resp, body = env.request(t, http.MethodGet, "/api/patterns", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var patterns []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &patterns); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(patterns) != 1 || patterns[0].ID != uploaded.ID {
		t.Fatalf("unexpected pattern list: %+v", patterns)
	}

	// blob streams back through /uploads
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/uploads/"+uploaded.Filename, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	blobResp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("fetch blob: %v", err)
	}
	defer blobResp.Body.Close()
	if blobResp.StatusCode != http.StatusOK {
		t.Fatalf("blob status = %d", blobResp.StatusCode)
	}
	blob, _ := io.ReadAll(blobResp.Body)
	if !bytes.Equal(blob, pngBytes(t)) {
		t.Fatal("served blob differs from upload")
	}
	if got := blobResp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("blob content type = %q", got)
	}
}

func TestPatternUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "texter@example.com", "plain1234")

	resp, body := env.uploadFile(t, token, "pattern", "notes.txt", []byte("just some text"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-image status = %d, body %s", resp.StatusCode, body)
	}
	if env.objects.Len() != 0 {
		t.Fatalf("rejected upload left %d blobs", env.objects.Len())
	}

	// wrong field name
	resp, _ = env.uploadFile(t, token, "file", "img.png", pngBytes(t))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong field status = %d", resp.StatusCode)
	}

	// no pattern row recorded
	resp, body = env.request(t, http.MethodGet, "/api/patterns", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var patterns []json.RawMessage
	if err := json.Unmarshal(body, &patterns); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("rejected upload recorded %d patterns", len(patterns))
	}
}

func TestUploadedPatternSharedWithURL(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "uploader@example.com", "upload123")

	resp, body := env.uploadFile(t, token, "pattern", "silk.png", pngBytes(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var uploaded struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, body = env.request(t, http.MethodPost, "/api/presets", token, map[string]any{
		"name": "Silk", "patternId": uploaded.ID, "settings": map[string]any{"scale": 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created struct {
		ID          string `json:"id"`
		PatternKind string `json:"patternKind"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.PatternKind != "uploaded" {
		t.Fatalf("pattern kind = %q, want uploaded", created.PatternKind)
	}

	resp, body = env.request(t, http.MethodPost, "/api/presets/"+created.ID+"/share", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share status = %d", resp.StatusCode)
	}
	var shared struct {
		ShareSlug string `json:"shareSlug"`
	}
	if err := json.Unmarshal(body, &shared); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, body = env.request(t, http.MethodGet, "/api/share/"+shared.ShareSlug, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	var view struct {
		PatternKind string  `json:"patternKind"`
		PatternURL  *string `json:"patternUrl"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.PatternKind != "uploaded" {
		t.Fatalf("view kind = %q", view.PatternKind)
	}
	if view.PatternURL == nil || !strings.HasSuffix(*view.PatternURL, "/uploads/"+uploaded.Filename) {
		t.Fatalf("view patternUrl = %v", view.PatternURL)
	}
}

func TestRateLimitSignup(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	memStore := store.NewMemoryStore()
	core, err := app.New(app.Config{
		PublicBaseURL: "http://localhost:4000",
		JWTSecret:     "test-secret",
		Store:         memStore,
		Objects:       storage.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv, err := New(Config{
		App:                      core,
		RedisAddr:                redisSrv.Addr(),
		SignupRateLimitPerMinute: 2,
		LoginRateLimitPerMinute:  2,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	env := &testEnv{server: ts, store: memStore}

	for i := 0; i < 2; i++ {
		resp, _ := env.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email": fmt.Sprintf("u%d@example.com", i), "password": "password1",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("signup %d status = %d", i, resp.StatusCode)
		}
	}
	resp, _ := env.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "u3@example.com", "password": "password1",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited signup status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.request(t, http.MethodGet, "/healthz", "", nil)
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS header")
	}

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/presets", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	preflight, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer preflight.Body.Close()
	if preflight.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", preflight.StatusCode)
	}
}

func TestUploadsPathTraversalBlocked(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.request(t, http.MethodGet, "/uploads/..%2fconfig.yaml", "", nil)
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("traversal request succeeded")
	}
}
