// Package schema embeds the JSON schema for OCFL inventory files.
package schema

import _ "embed"

// InventorySchema is the JSON schema for OCFL 1.x inventory files, adapted
// from the schema published with the OCFL specification.
//
//go:embed inventory_schema.json
var InventorySchema []byte
