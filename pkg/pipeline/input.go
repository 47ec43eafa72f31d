package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/planetaryhealth/phi/pkg/external"
	"github.com/planetaryhealth/phi/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/zeebo/blake3"
)

//go:embed input.schema.json
var inputSchema []byte

const schemaURL = "https://planetaryhealth.example/schemas/phi-input.json"

// ErrInvalidInput wraps decoding and schema validation failures.
var ErrInvalidInput = errors.New("invalid pipeline input")

// Site identifies the assessed location. All fields are informational.
type Site struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	AreaHa    *float64 `json:"area_ha,omitempty"`
}

// Input is one site's bundle: raw metrics, optional external data, and
// optional externally computed pillar scores with the weights to combine them.
type Input struct {
	Site         Site               `json:"site,omitzero"`
	Pillars      models.Pillars     `json:"pillars"`
	External     *external.Bundle   `json:"external,omitempty"`
	PillarScores map[string]float64 `json:"pillar_scores,omitempty"`
	Profile      string             `json:"profile,omitempty"`
	Weights      map[string]float64 `json:"weights,omitempty"`

	raw []byte
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(inputSchema))
	if err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add input schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// Schema returns the embedded input JSON Schema document.
func Schema() []byte {
	return append([]byte(nil), inputSchema...)
}

// Validate checks raw JSON against the input schema.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Decode validates and decodes one input document. The raw bytes are kept
// for the report digest.
func Decode(data []byte) (Input, error) {
	if err := Validate(data); err != nil {
		return Input{}, err
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	in.raw = append([]byte(nil), data...)
	return in, nil
}

// Digest returns the hex BLAKE3 digest of the input as it was decoded, or of
// its JSON encoding when it was built in code.
func (in Input) Digest() string {
	data := in.raw
	if data == nil {
		var err error
		data, err = json.Marshal(in)
		if err != nil {
			return ""
		}
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// scores resolves pillar score keys.
func (in Input) scores() (map[models.PillarID]float64, error) {
	if len(in.PillarScores) == 0 {
		return nil, nil
	}
	out := make(map[models.PillarID]float64, len(in.PillarScores))
	for key, v := range in.PillarScores {
		id, ok := models.ParsePillarID(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown pillar %q in pillar_scores", ErrInvalidInput, key)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: pillar %q scored twice", ErrInvalidInput, id)
		}
		out[id] = v
	}
	return out, nil
}
