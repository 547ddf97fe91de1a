package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskmirror/internal/item"
)

func TestIsConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer srv.Close()

	if !New(srv.URL, "tok").IsConnected(context.Background()) {
		t.Error("authenticated probe reported disconnected")
	}
	if New(srv.URL, "wrong").IsConnected(context.Background()) {
		t.Error("rejected probe reported connected")
	}
	// Without a token there is nothing to probe with.
	if New(srv.URL, "").IsConnected(context.Background()) {
		t.Error("tokenless client reported connected")
	}
}

func TestListItems_FollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/@default/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"items":[{"id":"t1","title":"One","status":"needsAction"}],"nextPageToken":"p2"}`)
		case "p2":
			fmt.Fprint(w, `{"items":[{"id":"t2","title":"Two","status":"completed","due":"2026-08-27T00:00:00Z"}]}`)
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))
	defer srv.Close()

	items, err := New(srv.URL, "tok").ListItems(context.Background(), "@default")
	if err != nil {
		t.Fatalf("ListItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items across pages, got %d", len(items))
	}
	if items[0].ID != "t1" || items[0].Completed {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].ID != "t2" || !items[1].Completed {
		t.Errorf("second item = %+v", items[1])
	}
	if items[1].Due == nil || !items[1].Due.Equal(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("due not parsed: %v", items[1].Due)
	}
}

func TestCreateItem(t *testing.T) {
	var received task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/lists/work/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		received.ID = "t-new"
		json.NewEncoder(w).Encode(received)
	}))
	defer srv.Close()

	id, err := New(srv.URL, "tok").CreateItem(context.Background(), "work", item.Snapshot{
		Title:     "Ship it",
		Notes:     "today",
		Completed: true,
	})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	if id != "t-new" {
		t.Errorf("id = %q, want t-new", id)
	}
	if received.Title != "Ship it" || received.Status != StatusCompleted {
		t.Errorf("wire task = %+v", received)
	}
}

func TestCreateItem_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"Ship it"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").CreateItem(context.Background(), "work", item.Snapshot{Title: "Ship it"})
	if err == nil {
		t.Error("create without an id in the response succeeded")
	}
}

func TestUpdateItem_PatchesOnlySetFields(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/lists/work/tasks/t1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	patch := item.Patch{Completed: item.Bool(true)}
	if err := New(srv.URL, "tok").UpdateItem(context.Background(), "work", "t1", patch); err != nil {
		t.Fatalf("UpdateItem() failed: %v", err)
	}

	if len(received) != 1 || received["status"] != StatusCompleted {
		t.Errorf("patch body = %v, want status only", received)
	}
}

func TestUpdateItem_EmptyPatchIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty patch reached the wire")
	}))
	defer srv.Close()

	if err := New(srv.URL, "tok").UpdateItem(context.Background(), "work", "t1", item.Patch{}); err != nil {
		t.Fatalf("UpdateItem() failed: %v", err)
	}
}

func TestDo_ErrorIncludesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").ListItems(context.Background(), "@default")
	if err == nil {
		t.Fatal("expected an error on 403")
	}
	for _, want := range []string{"403", "quota exceeded"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
