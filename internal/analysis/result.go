package analysis

import (
	"refbind/internal/binding"
	"refbind/internal/consistency"
	"refbind/internal/deduce"
	"refbind/internal/mode"
	"refbind/internal/source"
	"refbind/internal/unit"
	"refbind/internal/valuecat"
)

// Counts tallies verdicts over a unit.
type Counts struct {
	Allowed      int `msgpack:"allowed" json:"allowed"`
	ViaTemporary int `msgpack:"via_temporary" json:"via_temporary"`
	Forbidden    int `msgpack:"forbidden" json:"forbidden"`
}

func (c *Counts) add(v binding.Verdict) {
	switch v.Kind {
	case binding.Allowed:
		c.Allowed++
	case binding.AllowedViaTemporary:
		c.ViaTemporary++
	default:
		c.Forbidden++
	}
}

// Total is the number of counted binding sites.
func (c Counts) Total() int {
	return c.Allowed + c.ViaTemporary + c.Forbidden
}

// Site is one resolved binding.
type Site struct {
	Stmt     unit.StmtKind     `msgpack:"stmt"`
	Span     source.Span       `msgpack:"span"`
	Mode     mode.Mode         `msgpack:"mode"`
	Form     binding.Form      `msgpack:"form"`
	Context  binding.Context   `msgpack:"context"`
	Category valuecat.Category `msgpack:"category"`
	Mutable  bool              `msgpack:"mutable"`
	Verdict  binding.Verdict   `msgpack:"verdict"`
	// Deduced is set for deduce statements and deduced call candidates.
	Deduced string `msgpack:"deduced,omitempty"`
	// Effective is the synthesized binding of a cond statement.
	Effective string `msgpack:"effective,omitempty"`
}

// Result is the outcome of analyzing one unit.
type Result struct {
	Path    string               `msgpack:"path"`
	Policy  deduce.Policy        `msgpack:"policy"`
	Counts  Counts               `msgpack:"counts"`
	Sites   []Site               `msgpack:"sites"`
	Records []consistency.Record `msgpack:"records"`
	// CodegenBlocked: a mode mismatch or an error-severity imbalance.
	CodegenBlocked bool `msgpack:"codegen_blocked"`
	// Aborted: a fatal finding or cancellation stopped the unit early.
	Aborted bool `msgpack:"aborted"`
	// Unbalanced lists pushes still open at end of file, innermost first.
	Unbalanced []mode.Unbalanced `msgpack:"unbalanced"`
}
