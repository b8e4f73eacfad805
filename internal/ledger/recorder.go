package ledger

import (
	"crypto/ed25519"
	"time"

	"lava-submitter/internal/core"
	"lava-submitter/pkg/utils"
)

// Recorder appends every finished attempt to a ledger.
type Recorder struct {
	ledger *Ledger
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey

	// DefinitionHash is stored in every block of the run.
	DefinitionHash string
}

var _ core.AttemptRecorder = (*Recorder)(nil)

// NewRecorder returns a recorder signing with priv, or leaving blocks
// unsigned when priv is nil.
func NewRecorder(l *Ledger, priv ed25519.PrivateKey, pub ed25519.PublicKey) *Recorder {
	return &Recorder{ledger: l, priv: priv, pub: pub}
}

func (r *Recorder) Record(rec core.AttemptRecord) error {
	b := &Block{
		RunID:          rec.RunID,
		Name:           rec.Name,
		Attempt:        rec.Attempt,
		JobID:          rec.JobID,
		Status:         string(rec.Status),
		Cause:          string(rec.Cause),
		Error:          rec.Error,
		DefinitionHash: r.DefinitionHash,
		LogPath:        rec.LogPath,
	}
	if rec.LogPath != "" {
		// the archive may be gone, the block is still worth keeping
		if h, err := utils.HashFile(rec.LogPath); err == nil {
			b.LogHash = h
		}
	}

	at := rec.Finished
	if at.IsZero() {
		at = time.Now()
	}
	if err := b.Seal(r.ledger.NextIndex(), r.ledger.LastHash(), at); err != nil {
		return err
	}
	return r.ledger.Append(b, r.priv, r.pub)
}
