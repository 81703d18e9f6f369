// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// RuntimeChangesWrap advises deployment-manifest adjustments for
// packages known to need them, keyed by resolved package name.
type RuntimeChangesWrap struct {
	// Changes maps a package name to the manifest adjustments advised
	// when the final stack contains it.
	Changes map[string][]types.ManifestChange
}

// NewRuntimeChangesWrap returns the wrap with the builtin adjustment
// catalog. Thread-pinning packages get their worker env capped so the
// runtime does not oversubscribe shared nodes.
func NewRuntimeChangesWrap() *RuntimeChangesWrap {
	return &RuntimeChangesWrap{
		Changes: map[string][]types.ManifestChange{
			"intel-tensorflow": {{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Patch: types.ManifestPatch{
					Op:    "add",
					Path:  "/spec/template/spec/containers/0/env/0",
					Value: map[string]string{"name": "OMP_NUM_THREADS", "value": "1"},
				},
			}},
		},
	}
}

func (u *RuntimeChangesWrap) Name() string { return "RuntimeChangesWrap" }

func (u *RuntimeChangesWrap) Run(ctx *resolve.Context, state *resolve.State) error {
	for _, pv := range state.Resolved() {
		changes, ok := u.Changes[pv.Name]
		if !ok {
			continue
		}
		state.AddManifestChange(changes...)
		ctx.Logf("advising %d manifest change(s) for %s", len(changes), pv.Name)
	}
	return nil
}

// NoObservationWrap marks stacks the pipeline had nothing to say
// about, so an empty justification list reads as "no known issues"
// rather than "nothing checked".
type NoObservationWrap struct{}

func (u *NoObservationWrap) Name() string { return "NoObservationWrap" }

func (u *NoObservationWrap) Run(_ *resolve.Context, state *resolve.State) error {
	if len(state.Justifications()) > 0 {
		return nil
	}
	state.AddJustification(types.Justification{
		Type:    types.JustificationInfo,
		Message: "no observations found for any package in this stack",
	})
	return nil
}
