package credentials

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rotationMetadataSchema accepts any object; safe_slot, when present, must
// name one of the two slots.
const rotationMetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "safe_slot": {"type": "string", "enum": ["primary", "secondary"]},
    "last_rotated": {"type": "string"},
    "rotation_in_progress": {"type": "boolean"}
  }
}`

var rotationMetadataLoader = gojsonschema.NewStringLoader(rotationMetadataSchema)

// RotationMetadata advises which slot is safe to use during rotation.
type RotationMetadata struct {
	Tenant   string
	SafeSlot *Slot
}

// ParseRotationMetadata validates and decodes the rotation-metadata secret.
func ParseRotationMetadata(tenant, raw string) (RotationMetadata, error) {
	md := RotationMetadata{Tenant: tenant}

	result, err := gojsonschema.Validate(rotationMetadataLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return md, fmt.Errorf("rotation metadata for %s is not valid JSON: %w", tenant, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return md, fmt.Errorf("rotation metadata for %s failed validation:\n  - %s", tenant, strings.Join(msgs, "\n  - "))
	}

	var doc struct {
		SafeSlot *string `json:"safe_slot"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return md, fmt.Errorf("decode rotation metadata for %s: %w", tenant, err)
	}
	if doc.SafeSlot != nil {
		slot := Slot(*doc.SafeSlot)
		md.SafeSlot = &slot
	}
	return md, nil
}
