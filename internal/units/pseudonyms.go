// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package units

import (
	"fmt"

	"github.com/pdiddy/stack-adviser/internal/resolve"
	"github.com/pdiddy/stack-adviser/pkg/types"
)

// AliasPseudonym offers releases published under alternative names of a
// candidate's package ("package A ships the same code as B"). Only
// releases of the alias at the same version join the candidate set.
type AliasPseudonym struct{}

func (u *AliasPseudonym) Name() string { return "AliasPseudonym" }

func (u *AliasPseudonym) Run(ctx *resolve.Context, pv types.PackageVersion) ([]types.PackageVersion, error) {
	aliases, err := ctx.Knowledge.Aliases(pv.Name)
	if err != nil {
		return nil, fmt.Errorf("querying aliases of %s: %w", pv.Name, err)
	}
	if len(aliases) == 0 {
		return nil, nil
	}

	var out []types.PackageVersion
	for _, alias := range aliases {
		alts, err := ctx.Knowledge.Versions(alias, "=="+pv.Version, "")
		if err != nil {
			return nil, fmt.Errorf("querying versions of alias %s: %w", alias, err)
		}
		if len(alts) > 0 {
			ctx.Logf("pseudonym: %s also available as %s", pv, alias)
		}
		out = append(out, alts...)
	}
	return out, nil
}
