package clawback

import "github.com/xraph/clawback/id"

// ID is the primary identifier type for all Clawback entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
