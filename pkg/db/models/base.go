package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller did not supply one. Postgres
// also defaults ids, but sqlite (dev and tests) does not.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
