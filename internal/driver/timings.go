package driver

import (
	"encoding/json"
	"fmt"

	"refbind/internal/diag"
	"refbind/internal/observ"
	"refbind/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	Units   int                  `json:"units"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// timingDiagnostic renders a timer report as an OBS6001 info diagnostic;
// the phase breakdown travels as JSON in the single note.
func timingDiagnostic(path string, units int, rep observ.Report) (diag.Diagnostic, bool) {
	payload := timingPayload{
		Kind:    "check",
		Path:    path,
		Units:   units,
		TotalMS: rep.TotalMS,
		Phases:  rep.Phases,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return diag.Diagnostic{}, false
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms over %d unit(s)", payload.Kind, payload.TotalMS, units)
	d := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, msg).
		WithNote(source.Span{}, string(data))
	return d, true
}
