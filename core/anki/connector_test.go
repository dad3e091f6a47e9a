package anki

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"anki-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowWrites applies every request to the fake, then holds back the reply
// to the first addNote batch until the client has timed out.
type slowWrites struct {
	fake    *fakeAnki
	delay   time.Duration
	slowed  atomic.Bool
	batches atomic.Int32
}

func (s *slowWrites) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	s.fake.ServeHTTP(rec, r)

	if strings.Contains(string(body), `"addNote"`) {
		s.batches.Add(1)
		if s.slowed.CompareAndSwap(false, true) {
			time.Sleep(s.delay)
		}
	}
	w.WriteHeader(rec.Code)
	_, _ = w.Write(rec.Body.Bytes())
}

type rawAction struct {
	Action  string          `json:"action"`
	Version int             `json:"version"`
	Params  json.RawMessage `json:"params"`
	Key     string          `json:"key"`
}

// fakeAnki is a minimal AnkiConnect.
type fakeAnki struct {
	mu      sync.Mutex
	models  []string
	created []string
	notes   map[int64]map[string]any
	decks   map[string]bool
	media   map[string]string
	nextID  int64
	actions []string
	keys    []string
	fail    map[string]string
}

func newFakeAnki() *fakeAnki {
	return &fakeAnki{
		notes:  map[int64]map[string]any{},
		decks:  map[string]bool{},
		media:  map[string]string{},
		nextID: 100,
		fail:   map[string]string{},
	}
}

func (f *fakeAnki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rawAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, req.Key)
	result, errMsg := f.handle(req)
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": errMsg})
}

func (f *fakeAnki) handle(req rawAction) (any, any) {
	f.actions = append(f.actions, req.Action)
	if msg, ok := f.fail[req.Action]; ok {
		return nil, msg
	}
	var p map[string]json.RawMessage
	_ = json.Unmarshal(req.Params, &p)

	switch req.Action {
	case "multi":
		var actions []rawAction
		_ = json.Unmarshal(p["actions"], &actions)
		out := make([]any, len(actions))
		for i, a := range actions {
			res, msg := f.handle(a)
			out[i] = map[string]any{"result": res, "error": msg}
		}
		return out, nil
	case "requestPermission":
		return map[string]any{"permission": "granted"}, nil
	case "modelNames":
		return f.models, nil
	case "createModel":
		var name string
		_ = json.Unmarshal(p["modelName"], &name)
		f.models = append(f.models, name)
		f.created = append(f.created, name)
		return nil, nil
	case "updateModelTemplates", "reloadCollection":
		return nil, nil
	case "findNotes":
		ids := []int64{}
		for id := range f.notes {
			ids = append(ids, id)
		}
		return ids, nil
	case "notesInfo":
		var ids []int64
		_ = json.Unmarshal(p["notes"], &ids)
		out := []any{}
		for _, id := range ids {
			if n, ok := f.notes[id]; ok {
				fields := map[string]any{}
				for k, v := range n["fields"].(map[string]string) {
					fields[k] = map[string]any{"value": v, "order": 0}
				}
				out = append(out, map[string]any{
					"noteId": id, "modelName": n["model"], "tags": n["tags"], "fields": fields, "cards": []int64{id * 10},
				})
			}
		}
		return out, nil
	case "cardsInfo":
		var cards []int64
		_ = json.Unmarshal(p["cards"], &cards)
		out := []any{}
		for _, c := range cards {
			if n, ok := f.notes[c/10]; ok {
				out = append(out, map[string]any{"cardId": c, "note": c / 10, "deckName": n["deck"]})
			}
		}
		return out, nil
	case "getMediaFilesNames":
		names := []string{}
		for name := range f.media {
			names = append(names, name)
		}
		return names, nil
	case "createDeck":
		var deck string
		_ = json.Unmarshal(p["deck"], &deck)
		f.decks[deck] = true
		return 1, nil
	case "addNote":
		var note struct {
			DeckName  string            `json:"deckName"`
			ModelName string            `json:"modelName"`
			Fields    map[string]string `json:"fields"`
			Tags      []string          `json:"tags"`
		}
		_ = json.Unmarshal(p["note"], &note)
		if note.Fields["Text"] == "" {
			return nil, "cannot create note because it is empty"
		}
		f.nextID++
		f.notes[f.nextID] = map[string]any{"model": note.ModelName, "deck": note.DeckName, "fields": note.Fields, "tags": note.Tags}
		return f.nextID, nil
	case "updateNote":
		var note struct {
			ID     int64             `json:"id"`
			Fields map[string]string `json:"fields"`
			Tags   []string          `json:"tags"`
		}
		_ = json.Unmarshal(p["note"], &note)
		n, ok := f.notes[note.ID]
		if !ok {
			return nil, "note was not found"
		}
		n["fields"], n["tags"] = note.Fields, note.Tags
		return nil, nil
	case "changeDeck":
		var cards []int64
		var deck string
		_ = json.Unmarshal(p["cards"], &cards)
		_ = json.Unmarshal(p["deck"], &deck)
		for _, c := range cards {
			if n, ok := f.notes[c/10]; ok {
				n["deck"] = deck
			}
		}
		return nil, nil
	case "deleteNotes":
		var ids []int64
		_ = json.Unmarshal(p["notes"], &ids)
		for _, id := range ids {
			delete(f.notes, id)
		}
		return nil, nil
	case "storeMediaFile":
		var name, data string
		_ = json.Unmarshal(p["filename"], &name)
		_ = json.Unmarshal(p["data"], &data)
		f.media[name] = data
		return name, nil
	}
	return nil, "unsupported action"
}

type mapSource map[string]string

func (m mapSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("asset not found")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func newTestConnector(t *testing.T, fake *fakeAnki, assets mapSource) *Connector {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := NewClient(Config{URL: srv.URL, APIKey: "secret"}, nil, nil)
	return NewConnector(client, assets, nil)
}

func fields(key, text string) map[string]string {
	return map[string]string{reconcile.FieldUUIDType: key, reconcile.FieldText: text}
}

func TestConnector_ModelLifecycle(t *testing.T) {
	fake := newFakeAnki()
	conn := newTestConnector(t, fake, nil)
	ctx := context.Background()

	require.NoError(t, conn.RequestPermission(ctx))
	require.NoError(t, conn.CreateModel(ctx, "GModel", reconcile.ModelFieldNames))
	require.NoError(t, conn.CreateModel(ctx, "GModel", reconcile.ModelFieldNames))
	assert.Equal(t, []string{"GModel"}, fake.created, "second call only refreshes templates")
	assert.Contains(t, fake.actions, "updateModelTemplates")
	assert.Equal(t, "secret", fake.keys[0])

	_, err := conn.LoadModel(ctx, "Unknown")
	assert.ErrorContains(t, err, "does not exist")

	notes, err := conn.LoadModel(ctx, "GModel")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestConnector_Execute(t *testing.T) {
	fake := newFakeAnki()
	fake.models = []string{"GModel"}
	conn := newTestConnector(t, fake, mapSource{"../assets/a.png": "PNG"})
	ctx := context.Background()

	results, err := conn.Execute(ctx, reconcile.OpAdd, []reconcile.Operation{
		{Key: "a-cloze", Model: "GModel", Deck: "Sci::Bio", Fields: fields("a-cloze", "<p>a</p>"), Tags: []string{"bio"}},
		{Key: "b-cloze", Model: "GModel", Deck: "Sci::Bio", Fields: fields("b-cloze", "")},
		{Key: "c-cloze", Model: "GModel", Deck: "Default", Fields: fields("c-cloze", "<p>c</p>")},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NotZero(t, results[0].ID)
	var apiErr *APIError
	require.ErrorAs(t, results[1].Err, &apiErr)
	assert.Equal(t, "addNote", apiErr.Action)
	assert.NoError(t, results[2].Err)
	assert.True(t, fake.decks["Sci::Bio"])

	notes, err := conn.LoadModel(ctx, "GModel")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	byID := map[int64]reconcile.RemoteNote{}
	for _, n := range notes {
		byID[n.ID] = n
	}
	assert.Equal(t, "Sci::Bio", byID[results[0].ID].Deck)
	assert.Equal(t, []string{"bio"}, byID[results[0].ID].Tags)
	assert.Equal(t, "a-cloze", byID[results[0].ID].Fields[reconcile.FieldUUIDType])

	results, err = conn.Execute(ctx, reconcile.OpUpdate, []reconcile.Operation{
		{Key: "a-cloze", NoteID: results[0].ID, Deck: "Other", Fields: fields("a-cloze", "<p>a2</p>")},
		{Key: "x-cloze", NoteID: 9999, Deck: "Other", Fields: fields("x-cloze", "x")},
	})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	notes, _ = conn.LoadModel(ctx, "GModel")
	for _, n := range notes {
		if n.ID == results[0].ID {
			assert.Equal(t, "Other", n.Deck)
			assert.Equal(t, "<p>a2</p>", n.Fields[reconcile.FieldText])
		}
	}

	results, err = conn.Execute(ctx, reconcile.OpStoreAssets, []reconcile.Operation{
		{Key: "a.png", Asset: &reconcile.Asset{Name: "a.png", Path: "../assets/a.png"}},
		{Key: "missing.png", Asset: &reconcile.Asset{Name: "missing.png", Path: "../assets/missing.png"}},
	})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "asset not found")
	assert.Equal(t, "UE5H", fake.media["a.png"])

	media, err := conn.ListMedia(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, media)

	results, err = conn.Execute(ctx, reconcile.OpDelete, []reconcile.Operation{{NoteID: notes[0].ID}})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	remaining, _ := conn.LoadModel(ctx, "GModel")
	assert.Len(t, remaining, 1)

	require.NoError(t, conn.Reload(ctx))
}

func TestConnector_BatchFailure(t *testing.T) {
	fake := newFakeAnki()
	fake.fail["multi"] = "collection is not available"
	conn := newTestConnector(t, fake, nil)

	_, err := conn.Execute(context.Background(), reconcile.OpDelete, []reconcile.Operation{{NoteID: 1}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "collection is not available", apiErr.Message)
}

func TestConnector_PermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"permission":"denied"},"error":null}`))
	}))
	defer srv.Close()

	conn := NewConnector(NewClient(Config{URL: srv.URL}, nil, nil), nil, nil)
	assert.ErrorIs(t, conn.RequestPermission(context.Background()), ErrPermissionDenied)
}

func TestConnector_TimedOutAddIsNotResent(t *testing.T) {
	fake := newFakeAnki()
	fake.models = []string{"GModel"}
	handler := &slowWrites{fake: fake, delay: 1500 * time.Millisecond}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, TimeoutSeconds: 1, MaxRetries: 2}, nil, nil)
	conn := NewConnector(client, nil, nil)

	_, err := conn.Execute(context.Background(), reconcile.OpAdd, []reconcile.Operation{
		{Key: "a-cloze", Model: "GModel", Deck: "Default", Fields: fields("a-cloze", "<p>a</p>")},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), handler.batches.Load())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.notes, 1)
}
