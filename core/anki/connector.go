package anki

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"anki-sync/core/reconcile"
	"anki-sync/core/storage"

	"go.uber.org/zap"
)

// Connector implements reconcile.Connector on top of AnkiConnect.
type Connector struct {
	client *Client
	assets storage.AssetSource
	log    *zap.Logger
}

// NewConnector creates a connector. assets is used to read media files for
// store-assets batches.
func NewConnector(client *Client, assets storage.AssetSource, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connector{client: client, assets: assets, log: log}
}

// RequestPermission asks AnkiConnect for access.
func (c *Connector) RequestPermission(ctx context.Context) error {
	var res struct {
		Permission string `json:"permission"`
	}
	if err := c.client.Invoke(ctx, "requestPermission", nil, &res); err != nil {
		return err
	}
	if res.Permission != "granted" {
		return ErrPermissionDenied
	}
	return nil
}

// Reload asks Anki to reload the collection.
func (c *Connector) Reload(ctx context.Context) error {
	return c.client.Invoke(ctx, "reloadCollection", nil, nil)
}

func (c *Connector) modelNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.client.Invoke(ctx, "modelNames", nil, &names)
	return names, err
}

// CreateModel creates the cloze model with the sync templates, or refreshes
// the templates of an existing model.
func (c *Connector) CreateModel(ctx context.Context, name string, fields []string) error {
	names, err := c.modelNames(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(names, name) {
		return c.client.Invoke(ctx, "updateModelTemplates", map[string]any{
			"model": map[string]any{
				"name": name,
				"templates": map[string]any{
					templateName: map[string]string{"Front": templateFront, "Back": templateBack},
				},
			},
		}, nil)
	}

	c.log.Info("Creating model", zap.String("model", name))
	return c.client.Invoke(ctx, "createModel", map[string]any{
		"modelName":     name,
		"inOrderFields": fields,
		"css":           templateCSS,
		"isCloze":       true,
		"cardTemplates": []map[string]string{
			{"Name": templateName, "Front": templateFront, "Back": templateBack},
		},
	}, nil)
}

type noteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

type noteInfo struct {
	NoteID    int64                `json:"noteId"`
	ModelName string               `json:"modelName"`
	Tags      []string             `json:"tags"`
	Fields    map[string]noteField `json:"fields"`
	Cards     []int64              `json:"cards"`
}

type cardInfo struct {
	CardID   int64  `json:"cardId"`
	DeckName string `json:"deckName"`
	Note     int64  `json:"note"`
}

// LoadModel returns every note of model with its deck. A model unknown to
// Anki is an error.
func (c *Connector) LoadModel(ctx context.Context, model string) ([]reconcile.RemoteNote, error) {
	names, err := c.modelNames(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, model) {
		return nil, fmt.Errorf("model %s does not exist", model)
	}

	var ids []int64
	if err := c.client.Invoke(ctx, "findNotes", map[string]any{"query": "note:" + strconv.Quote(model)}, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	infos, err := c.notesInfo(ctx, ids)
	if err != nil {
		return nil, err
	}

	var cardIDs []int64
	for _, info := range infos {
		if len(info.Cards) > 0 {
			cardIDs = append(cardIDs, info.Cards[0])
		}
	}
	decks := make(map[int64]string, len(infos))
	if len(cardIDs) > 0 {
		var cards []cardInfo
		if err := c.client.Invoke(ctx, "cardsInfo", map[string]any{"cards": cardIDs}, &cards); err != nil {
			return nil, err
		}
		for _, card := range cards {
			decks[card.Note] = card.DeckName
		}
	}

	notes := make([]reconcile.RemoteNote, 0, len(infos))
	for _, info := range infos {
		fields := make(map[string]string, len(info.Fields))
		for name, f := range info.Fields {
			fields[name] = f.Value
		}
		notes = append(notes, reconcile.RemoteNote{
			ID:     info.NoteID,
			Model:  info.ModelName,
			Deck:   decks[info.NoteID],
			Fields: fields,
			Tags:   info.Tags,
			Cards:  info.Cards,
		})
	}
	return notes, nil
}

func (c *Connector) notesInfo(ctx context.Context, ids []int64) ([]noteInfo, error) {
	var infos []noteInfo
	if err := c.client.Invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListMedia returns the names of all media files in the collection.
func (c *Connector) ListMedia(ctx context.Context) ([]string, error) {
	var names []string
	err := c.client.Invoke(ctx, "getMediaFilesNames", map[string]any{"pattern": "*"}, &names)
	return names, err
}

// Execute runs a batch through a single multi call per step.
func (c *Connector) Execute(ctx context.Context, kind reconcile.OpKind, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	switch kind {
	case reconcile.OpAdd:
		return c.add(ctx, ops)
	case reconcile.OpUpdate:
		return c.update(ctx, ops)
	case reconcile.OpDelete:
		return c.delete(ctx, ops)
	case reconcile.OpStoreAssets:
		return c.storeAssets(ctx, ops)
	default:
		return nil, fmt.Errorf("unsupported operation %q", kind)
	}
}

// ensureDecks creates every deck named by ops. Failures surface later on
// the notes that need the deck.
func (c *Connector) ensureDecks(ctx context.Context, ops []reconcile.Operation) {
	var actions []action
	seen := make(map[string]struct{})
	for _, op := range ops {
		if _, ok := seen[op.Deck]; ok || op.Deck == "" {
			continue
		}
		seen[op.Deck] = struct{}{}
		actions = append(actions, action{Action: "createDeck", Version: apiVersion, Params: map[string]any{"deck": op.Deck}})
	}
	if _, err := c.client.multi(ctx, actions); err != nil {
		c.log.Warn("Failed to create decks", zap.Error(err))
	}
}

func (c *Connector) add(ctx context.Context, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	c.ensureDecks(ctx, ops)

	actions := make([]action, len(ops))
	for i, op := range ops {
		actions[i] = action{Action: "addNote", Version: apiVersion, Params: map[string]any{
			"note": map[string]any{
				"deckName":  op.Deck,
				"modelName": op.Model,
				"fields":    op.Fields,
				"tags":      nonNil(op.Tags),
				"options":   map[string]any{"allowDuplicate": true},
			},
		}}
	}
	responses, err := c.client.multi(ctx, actions)
	if err != nil {
		return nil, err
	}

	results := make([]reconcile.OpResult, len(ops))
	for i, r := range responses {
		if results[i].Err = subError("addNote", r); results[i].Err != nil {
			continue
		}
		if err := decodeID(r, &results[i].ID); err != nil {
			results[i].Err = err
		}
	}
	return results, nil
}

func (c *Connector) update(ctx context.Context, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	c.ensureDecks(ctx, ops)

	ids := make([]int64, len(ops))
	for i, op := range ops {
		ids[i] = op.NoteID
	}
	infos, err := c.notesInfo(ctx, ids)
	if err != nil {
		return nil, err
	}
	cards := make(map[int64][]int64, len(infos))
	for _, info := range infos {
		cards[info.NoteID] = info.Cards
	}

	// Two actions per note: fields and tags, then the deck of its cards.
	actions := make([]action, 0, 2*len(ops))
	for _, op := range ops {
		actions = append(actions, action{Action: "updateNote", Version: apiVersion, Params: map[string]any{
			"note": map[string]any{"id": op.NoteID, "fields": op.Fields, "tags": nonNil(op.Tags)},
		}})
		actions = append(actions, action{Action: "changeDeck", Version: apiVersion, Params: map[string]any{
			"cards": nonNil(cards[op.NoteID]), "deck": op.Deck,
		}})
	}
	responses, err := c.client.multi(ctx, actions)
	if err != nil {
		return nil, err
	}

	results := make([]reconcile.OpResult, len(ops))
	for i := range ops {
		results[i].ID = ops[i].NoteID
		if err := subError("updateNote", responses[2*i]); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Err = subError("changeDeck", responses[2*i+1])
	}
	return results, nil
}

func (c *Connector) delete(ctx context.Context, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	actions := make([]action, len(ops))
	for i, op := range ops {
		actions[i] = action{Action: "deleteNotes", Version: apiVersion, Params: map[string]any{"notes": []int64{op.NoteID}}}
	}
	responses, err := c.client.multi(ctx, actions)
	if err != nil {
		return nil, err
	}
	results := make([]reconcile.OpResult, len(ops))
	for i, r := range responses {
		results[i] = reconcile.OpResult{ID: ops[i].NoteID, Err: subError("deleteNotes", r)}
	}
	return results, nil
}

func (c *Connector) storeAssets(ctx context.Context, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	results := make([]reconcile.OpResult, len(ops))
	var actions []action
	var index []int
	for i, op := range ops {
		if op.Asset == nil {
			results[i].Err = fmt.Errorf("operation %s has no asset", op.Key)
			continue
		}
		data, err := c.readAsset(ctx, op.Asset.Path)
		if err != nil {
			results[i].Err = err
			continue
		}
		actions = append(actions, action{Action: "storeMediaFile", Version: apiVersion, Params: map[string]any{
			"filename": op.Asset.Name,
			"data":     base64.StdEncoding.EncodeToString(data),
		}})
		index = append(index, i)
	}

	responses, err := c.client.multi(ctx, actions)
	if err != nil {
		return nil, err
	}
	for j, r := range responses {
		results[index[j]].Err = subError("storeMediaFile", r)
	}
	return results, nil
}

func (c *Connector) readAsset(ctx context.Context, path string) ([]byte, error) {
	if c.assets == nil {
		return nil, fmt.Errorf("no asset source configured")
	}
	rc, err := c.assets.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeID(r response, id *int64) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("anki addNote: empty result")
	}
	if err := json.Unmarshal(r.Result, id); err != nil {
		return fmt.Errorf("anki addNote: failed to decode id: %w", err)
	}
	if *id == 0 {
		return fmt.Errorf("anki addNote: note was not added")
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
