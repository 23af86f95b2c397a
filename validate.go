package blobvault

import (
	"context"
	"fmt"

	"github.com/havenfs/blobvault/pkg/identity"
)

// ValidationResult captures the outcome of validating a single content root.
type ValidationResult struct {
	Id  identity.ContentId
	Err error
}

// Passed reports whether the validation succeeded.
func (r ValidationResult) Passed() bool {
	return r.Err == nil
}

// ValidateContent verifies that the stored bytes addressed by id still hash
// to id after reassembly and decompression.
func (v *Vault) ValidateContent(ctx context.Context, id identity.ContentId) error {
	content, err := v.FetchContent(ctx, identity.Canonical(id))
	if err != nil {
		return fmt.Errorf("failed to fetch content for validation: %w", err)
	}

	computed := identity.ComputeContentId(content)
	if computed != id {
		return fmt.Errorf("content hash mismatch: expected %s, got %s", id, computed)
	}
	return nil
}

// ValidateAll validates every stored content blob, roots and leaves alike,
// and returns one result per id. Redacted content is reported as failing
// with the redaction denial; validation never bypasses the gate.
func (v *Vault) ValidateAll(ctx context.Context) ([]ValidationResult, error) {
	ids, err := v.ListContentIds()
	if err != nil {
		return nil, fmt.Errorf("failed to list content for validation: %w", err)
	}

	results := make([]ValidationResult, 0, len(ids))
	for _, id := range ids {
		res := ValidationResult{Id: id}
		if err := v.ValidateContent(ctx, id); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}
