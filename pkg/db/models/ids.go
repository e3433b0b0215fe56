package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller did not set one. Postgres also
// defaults ids with gen_random_uuid(); assigning in Go keeps sqlite tests honest.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
