package ledger

import (
	"fmt"

	"lava-submitter/internal/security"
)

// VerifyChain recomputes every hash and link, and checks the signature of
// signed blocks.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range l.blocks {
		if b.Index != i {
			return fmt.Errorf("index mismatch: expected %d got %d", i, b.Index)
		}

		h, err := b.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", b.Index, err)
		}
		if h != b.Hash {
			return fmt.Errorf("hash mismatch at index %d", b.Index)
		}

		if i > 0 && b.PrevHash != l.blocks[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", b.Index)
		}

		if b.Signature == "" {
			continue
		}
		ok, err := security.VerifySignatureFromHex(b.PubKey, []byte(b.Hash), b.Signature)
		if err != nil {
			return fmt.Errorf("signature at index %d: %w", b.Index, err)
		}
		if !ok {
			return fmt.Errorf("bad signature at index %d", b.Index)
		}
	}
	return nil
}
