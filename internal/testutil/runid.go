package testutil

// FixedRunIDGenerator returns the same run id every time.
//
// Golden traces embed the run id in their START record; a constant id
// keeps repeated runs of one scenario byte-identical.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
