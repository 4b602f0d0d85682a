package app

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// memObjects keeps uploaded blobs in memory and presigns fake URLs.
type memObjects struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: map[string][]byte{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func doUpload(t *testing.T, h http.Handler, path, token, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newTestServerWithObjects(t *testing.T) (*memObjects, http.Handler) {
	t.Helper()
	ms := newMemStore()
	svc := newTestService(ms)
	objects := newMemObjects()
	svc.SetObjectStore(objects)
	return objects, NewHTTPServer(svc, "*").Handler()
}

func TestUploadAndListAttachments(t *testing.T) {
	objects, h := newTestServerWithObjects(t)

	token, _ := signUpAndIn(t, h, "kai@example.com")
	messageID := createMessage(t, h, token, "with file")

	rr := doUpload(t, h, "/messages/"+messageID+"/attachments", token, "notes.txt", "hello attachment")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	if payload["message"] != messageID {
		t.Errorf("expected attachment linked to message, got %v", payload["message"])
	}
	if payload["fileName"] != "notes.txt" {
		t.Errorf("expected fileName preserved, got %v", payload["fileName"])
	}
	if _, leaked := payload["objectKey"]; leaked {
		t.Error("object key leaked in response")
	}

	objects.mu.Lock()
	stored := len(objects.blobs)
	objects.mu.Unlock()
	if stored != 1 {
		t.Fatalf("expected 1 stored blob, got %d", stored)
	}

	rr = doJSON(t, h, http.MethodGet, "/messages/"+messageID+"/attachments", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	views := decodeList(t, rr)
	if len(views) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(views))
	}
	url, _ := views[0]["url"].(string)
	if url == "" {
		t.Errorf("expected presigned url in view, got %v", views[0])
	}
}

func TestDeleteMessageRemovesBlobs(t *testing.T) {
	objects, h := newTestServerWithObjects(t)

	token, _ := signUpAndIn(t, h, "kai@example.com")
	messageID := createMessage(t, h, token, "with files")

	for _, name := range []string{"a.txt", "b.txt"} {
		rr := doUpload(t, h, "/messages/"+messageID+"/attachments", token, name, "payload")
		if rr.Code != http.StatusCreated {
			t.Fatalf("upload %s: expected 201, got %d body=%s", name, rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, h, http.MethodDelete, "/messages/"+messageID, token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	objects.mu.Lock()
	remaining := len(objects.blobs)
	objects.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected all blobs removed with the message, %d left", remaining)
	}
}

func TestUploadAttachmentRequiresMessageOwner(t *testing.T) {
	_, h := newTestServerWithObjects(t)

	token, _ := signUpAndIn(t, h, "kai@example.com")
	otherToken, _ := signUpAndIn(t, h, "other@example.com")
	messageID := createMessage(t, h, token, "mine")

	rr := doUpload(t, h, "/messages/"+messageID+"/attachments", otherToken, "notes.txt", "sneaky")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-owner, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doUpload(t, h, "/messages/msg_ghost/attachments", token, "notes.txt", "orphan")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown message, got %d", rr.Code)
	}
}
