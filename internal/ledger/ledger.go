package ledger

import (
	"bufio"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Ledger is an append-only chain of attempt blocks persisted as JSON lines.
type Ledger struct {
	mu     sync.Mutex
	blocks []*Block
	path   string
}

// Open loads the ledger at path. A missing file is an empty ledger; it is
// created on the first append.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var blk Block
		if err := dec.Decode(&blk); err != nil {
			return nil, fmt.Errorf("decode ledger entry %d: %w", len(l.blocks), err)
		}
		l.blocks = append(l.blocks, &blk)
	}
	return l, nil
}

// Append checks b against the chain head, signs it when priv is set, and
// persists it.
func (l *Ledger) Append(b *Block, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, err := b.ComputeHash()
	if err != nil {
		return fmt.Errorf("recompute block hash: %w", err)
	}
	b.Hash = h

	if b.Index != len(l.blocks) {
		return fmt.Errorf("index mismatch: expected %d, got %d", len(l.blocks), b.Index)
	}
	if last := l.lastHash(); b.PrevHash != last {
		return fmt.Errorf("prevHash mismatch: expected %s, got %s", last, b.PrevHash)
	}

	if len(priv) > 0 {
		b.Signature = hex.EncodeToString(ed25519.Sign(priv, []byte(b.Hash)))
		b.PubKey = hex.EncodeToString(pub)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.blocks = append(l.blocks, b)
	return nil
}

// Blocks returns the chain in order. The blocks are shared, not copied.
func (l *Ledger) Blocks() []*Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.blocks)
}

func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash()
}

func (l *Ledger) lastHash() string {
	if len(l.blocks) == 0 {
		return ""
	}
	return l.blocks[len(l.blocks)-1].Hash
}
