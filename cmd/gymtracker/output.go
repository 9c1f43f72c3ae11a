package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// describe prefixes store failures with the message shown to users.
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrStorageFailure):
		return fmt.Errorf("%s: %w", workoutsvc.StorageFailureMessage, err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		return fmt.Errorf("media storage is not available: %w", err)
	default:
		return err
	}
}
