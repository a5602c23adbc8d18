package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error markers classify failures across the delivery pipeline. Per-entity
// failures (validation, not found) are converted into report entries so a
// batch keeps going; transport and configuration failures abort the run.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrTransport     = errors.New("transport error")
	ErrExternalTool  = errors.New("external tool error")
)

// Wrap builds an error message that includes operation context while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, operation, detail string, err error) error {
	message := buildDetail(operation, detail)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, message, err)
	}
	return fmt.Errorf("%w: %s", marker, message)
}

// Recoverable reports whether an error should be recorded and skipped at
// per-entity granularity rather than aborting the batch.
func Recoverable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

func buildDetail(operation, detail string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		parts = append(parts, detail)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
