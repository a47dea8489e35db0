package accounting

import "github.com/xraph/accounting/id"

// ID is the primary identifier type for all accounting entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// TransactionID identifies a committed transaction.
type TransactionID = id.TransactionID
