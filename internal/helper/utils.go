package helper

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewRequestID returns a random UUID for correlating log lines. If the random
// source fails it returns "unknown" rather than an error.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to generate request id")
		return "unknown"
	}
	return id.String()
}

// PrettyPrint writes v to w as indented JSON.
func PrettyPrint(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("pretty print: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
