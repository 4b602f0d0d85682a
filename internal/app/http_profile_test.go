package app

import (
	"net/http"
	"testing"
)

func TestCreateProfileForcesOwner(t *testing.T) {
	_, h := newTestServer(t)
	token, userID := signUpAndIn(t, h, "kai@example.com")

	rr := doJSON(t, h, http.MethodPost, "/profiles", token, `{"username":"kai","fullName":"Kai Doe","userRef":"usr_spoofed"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	if payload["userRef"] != userID {
		t.Errorf("expected owner forced to caller %s, got %v", userID, payload["userRef"])
	}
}

func TestCreateProfileRequiresUsername(t *testing.T) {
	_, h := newTestServer(t)
	token, _ := signUpAndIn(t, h, "kai@example.com")

	rr := doJSON(t, h, http.MethodPost, "/profiles", token, `{"fullName":"Kai Doe"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUpdateProfilePartialMerge(t *testing.T) {
	_, h := newTestServer(t)
	token, _ := signUpAndIn(t, h, "kai@example.com")

	rr := doJSON(t, h, http.MethodPost, "/profiles", token, `{"username":"kai","fullName":"Kai Doe","location":"Lisbon"}`)
	profileID := decodeMap(t, rr)["id"].(string)

	rr = doJSON(t, h, http.MethodPatch, "/profiles/"+profileID, token, `{"location":"Porto"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/profiles/"+profileID, token, "")
	payload := decodeMap(t, rr)
	if payload["location"] != "Porto" {
		t.Errorf("expected location updated, got %v", payload["location"])
	}
	if payload["username"] != "kai" || payload["fullName"] != "Kai Doe" {
		t.Errorf("blank fields must keep their values, got %v", payload)
	}
}

func TestUpdateProfileNonOwnerRejected(t *testing.T) {
	_, h := newTestServer(t)
	ownerToken, _ := signUpAndIn(t, h, "owner@example.com")
	otherToken, _ := signUpAndIn(t, h, "other@example.com")

	rr := doJSON(t, h, http.MethodPost, "/profiles", ownerToken, `{"username":"owner"}`)
	profileID := decodeMap(t, rr)["id"].(string)

	rr = doJSON(t, h, http.MethodPatch, "/profiles/"+profileID, otherToken, `{"username":"hijacked"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if decodeMap(t, rr)["code"] != "AUTHORIZATION" {
		t.Errorf("expected AUTHORIZATION code, got %s", rr.Body.String())
	}

	// State unchanged after the rejected mutation.
	rr = doJSON(t, h, http.MethodGet, "/profiles/"+profileID, ownerToken, "")
	if decodeMap(t, rr)["username"] != "owner" {
		t.Errorf("rejected update must not change state, got %s", rr.Body.String())
	}
}

func TestDeleteProfile(t *testing.T) {
	_, h := newTestServer(t)
	ownerToken, _ := signUpAndIn(t, h, "owner@example.com")
	otherToken, _ := signUpAndIn(t, h, "other@example.com")

	rr := doJSON(t, h, http.MethodPost, "/profiles", ownerToken, `{"username":"owner"}`)
	profileID := decodeMap(t, rr)["id"].(string)

	rr = doJSON(t, h, http.MethodDelete, "/profiles/"+profileID, otherToken, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-owner delete, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodDelete, "/profiles/"+profileID, ownerToken, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/profiles/"+profileID, ownerToken, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}
