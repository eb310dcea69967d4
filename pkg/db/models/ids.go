package models

import "github.com/google/uuid"

// assignID fills a zero primary key client side so inserts do not depend on
// the gen_random_uuid() column default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
