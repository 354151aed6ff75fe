package jobchain

import "github.com/risetechapps/jobchain/id"

// ID is the primary identifier type for all jobchain entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
