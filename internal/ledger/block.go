package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Block is a tamper-evident record of one job attempt.
type Block struct {
	Index          int    `json:"index"`
	Timestamp      string `json:"timestamp"`
	RunID          string `json:"runId"`
	Name           string `json:"name,omitempty"`
	Attempt        int    `json:"attempt"`
	JobID          string `json:"jobId,omitempty"`
	Status         string `json:"status"`
	Cause          string `json:"cause,omitempty"`
	Error          string `json:"error,omitempty"`
	DefinitionHash string `json:"definitionHash,omitempty"`
	LogPath        string `json:"logPath,omitempty"`
	LogHash        string `json:"logHash,omitempty"`
	PrevHash       string `json:"prevHash"`
	Hash           string `json:"hash"`
	Signature      string `json:"signature,omitempty"`
	PubKey         string `json:"pubKey,omitempty"`
}

// canonicalData returns the JSON bytes the block hash is computed over.
// Hash, Signature and PubKey are not part of it.
func (b *Block) canonicalData() ([]byte, error) {
	view := struct {
		Index          int    `json:"index"`
		Timestamp      string `json:"timestamp"`
		RunID          string `json:"runId"`
		Name           string `json:"name"`
		Attempt        int    `json:"attempt"`
		JobID          string `json:"jobId"`
		Status         string `json:"status"`
		Cause          string `json:"cause"`
		Error          string `json:"error"`
		DefinitionHash string `json:"definitionHash"`
		LogPath        string `json:"logPath"`
		LogHash        string `json:"logHash"`
		PrevHash       string `json:"prevHash"`
	}{
		Index:          b.Index,
		Timestamp:      b.Timestamp,
		RunID:          b.RunID,
		Name:           b.Name,
		Attempt:        b.Attempt,
		JobID:          b.JobID,
		Status:         b.Status,
		Cause:          b.Cause,
		Error:          b.Error,
		DefinitionHash: b.DefinitionHash,
		LogPath:        b.LogPath,
		LogHash:        b.LogHash,
		PrevHash:       b.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData.
func (b *Block) ComputeHash() (string, error) {
	data, err := b.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal stamps the block with its position in the chain and computes its hash.
func (b *Block) Seal(index int, prevHash string, at time.Time) error {
	b.Index = index
	b.PrevHash = prevHash
	b.Timestamp = at.UTC().Format(time.RFC3339)

	h, err := b.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute block hash: %w", err)
	}
	b.Hash = h
	return nil
}
