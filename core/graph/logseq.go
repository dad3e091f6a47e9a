package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anki-sync/core/transport"
)

// LogseqClient implements Accessor, Scanner and Describer against the Logseq
// HTTP API server (POST /api with {"method", "args"}).
type LogseqClient struct {
	http *transport.JSONClient
}

type apiCall struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// upsertBlockPropertyMethod is the only write; it is never resent.
const upsertBlockPropertyMethod = "logseq.Editor.upsertBlockProperty"

// allBlocksQuery pulls every block that has content.
const allBlocksQuery = `[:find (pull ?b [*]) :where [?b :block/uuid] [?b :block/content]]`

// NewLogseqClient creates a client for the Logseq HTTP API.
func NewLogseqClient(cfg Config, httpClient *http.Client) *LogseqClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &LogseqClient{
		http: transport.NewJSONClient(transport.Config{
			BaseURL:    cfg.URL,
			Token:      cfg.Token,
			Timeout:    timeout,
			MaxRetries: 2,
		}, httpClient),
	}
}

func (c *LogseqClient) call(ctx context.Context, method string, out any, args ...any) error {
	if args == nil {
		args = []any{}
	}
	post := c.http.PostJSON
	if method == upsertBlockPropertyMethod {
		post = c.http.PostJSONOnce
	}
	if err := post(ctx, "/api", apiCall{Method: method, Args: args}, out); err != nil {
		return fmt.Errorf("logseq %s: %w", method, err)
	}
	return nil
}

// GetBlock returns the block with the given database id. Logseq answers
// page ids with the page entity; those come back as nil.
func (c *LogseqClient) GetBlock(ctx context.Context, id int) (*Block, error) {
	var block *Block
	if err := c.call(ctx, "logseq.Editor.getBlock", &block, id); err != nil {
		return nil, err
	}
	if block != nil && block.Page == nil {
		return nil, nil
	}
	return block, nil
}

// GetBlockByUUID returns the block with the given uuid.
func (c *LogseqClient) GetBlockByUUID(ctx context.Context, uuid string) (*Block, error) {
	var block *Block
	if err := c.call(ctx, "logseq.Editor.getBlock", &block, uuid); err != nil {
		return nil, err
	}
	return block, nil
}

// GetPage returns the page with the given database id.
func (c *LogseqClient) GetPage(ctx context.Context, id int) (*Page, error) {
	var page *Page
	if err := c.call(ctx, "logseq.Editor.getPage", &page, id); err != nil {
		return nil, err
	}
	return page, nil
}

// UpsertBlockProperty writes a property onto a block.
func (c *LogseqClient) UpsertBlockProperty(ctx context.Context, uuid, key string, value any) error {
	return c.call(ctx, upsertBlockPropertyMethod, nil, uuid, key, value)
}

// CurrentGraph returns the name and path of the open graph.
func (c *LogseqClient) CurrentGraph(ctx context.Context) (*Info, error) {
	var info *Info
	if err := c.call(ctx, "logseq.App.getCurrentGraph", &info); err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("logseq: no graph is open")
	}
	return info, nil
}

// Blocks returns every block in the graph via a datascript query.
func (c *LogseqClient) Blocks(ctx context.Context) ([]*Block, error) {
	var rows [][]map[string]json.RawMessage
	if err := c.call(ctx, "logseq.DB.datascriptQuery", &rows, allBlocksQuery); err != nil {
		return nil, err
	}
	blocks := make([]*Block, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		block, err := decodePulledBlock(row[0])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// decodePulledBlock accepts both plain and "block/"-qualified attribute names.
func decodePulledBlock(raw map[string]json.RawMessage) (*Block, error) {
	plain := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		key = strings.TrimPrefix(key, ":")
		key = strings.TrimPrefix(key, "block/")
		plain[key] = value
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to decode block: %w", err)
	}
	return &block, nil
}
