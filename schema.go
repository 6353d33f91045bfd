package ethauth

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed claims.schema.json
var claimsSchemaJSON []byte

var (
	claimsSchema     *gojsonschema.Schema
	loadSchemaOnce   sync.Once
	errLoadingSchema error
)

func loadClaimsSchema() (*gojsonschema.Schema, error) {
	loadSchemaOnce.Do(func() {
		claimsSchema, errLoadingSchema = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(claimsSchemaJSON))
	})
	return claimsSchema, errLoadingSchema
}

// checkClaimsJSON verifies that every known claim in payload has the
// expected JSON type before it is decoded.
func checkClaimsJSON(payload []byte) error {
	schema, err := loadClaimsSchema()
	if err != nil {
		return fmt.Errorf("failed to load claims schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClaimsEncoding, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidClaimsEncoding, strings.Join(msgs, "; "))
	}
	return nil
}
