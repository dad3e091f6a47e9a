package graph

import "context"

// MaxWalkDepth caps ancestor walks. The graph is externally mutable, so a
// parent chain may contain a cycle.
const MaxWalkDepth = 256

// WalkBlocks visits start and then each block ancestor, innermost first.
// The walk ends at the first parent id that does not resolve to a block
// (the page), when fn returns false, or after MaxWalkDepth steps.
func WalkBlocks(ctx context.Context, a Accessor, start *Block, fn func(*Block) bool) error {
	seen := make(map[int]struct{})
	current := start
	for steps := 0; current != nil && steps < MaxWalkDepth; steps++ {
		if _, dup := seen[current.ID]; dup && current.ID != 0 {
			return nil
		}
		seen[current.ID] = struct{}{}
		if !fn(current) {
			return nil
		}
		parentID := current.ParentID()
		if parentID == 0 {
			return nil
		}
		next, err := a.GetBlock(ctx, parentID)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// Ancestors returns the block ancestors of b (b excluded), innermost first.
func Ancestors(ctx context.Context, a Accessor, b *Block) ([]*Block, error) {
	var out []*Block
	err := WalkBlocks(ctx, a, b, func(blk *Block) bool {
		if blk != b {
			out = append(out, blk)
		}
		return true
	})
	return out, err
}

// WalkNamespace visits the page with pageID and each namespace ancestor page.
func WalkNamespace(ctx context.Context, a Accessor, pageID int, fn func(*Page) bool) error {
	seen := make(map[int]struct{})
	id := pageID
	for steps := 0; id != 0 && steps < MaxWalkDepth; steps++ {
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}
		page, err := a.GetPage(ctx, id)
		if err != nil {
			return err
		}
		if page == nil || !fn(page) {
			return nil
		}
		id = page.NamespaceID()
	}
	return nil
}
