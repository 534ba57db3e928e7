package registry

import (
	"context"
	"fmt"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// IBCRegistrySource is the go-getter address of the `_IBC` directory.
const IBCRegistrySource = "github.com/cosmos/chain-registry//_IBC"

// Download mirrors the chain registry `_IBC` directory into dst so that a
// DirSource can answer lookups offline.
//
// Params:
//   - ctx: bounds the git clone, a 120s deadline is applied when ctx has none
//   - dst: the directory to download the registry to
func Download(ctx context.Context, dst string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}

	client := getter.Client{
		Ctx:  ctx,
		Src:  IBCRegistrySource,
		Dst:  dst,
		Mode: getter.ClientModeDir,
		Detectors: []getter.Detector{
			&getter.GitHubDetector{},
		},
		Getters: map[string]getter.Getter{
			"git": &getter.GitGetter{},
		},
	}

	log.Info().Str("src", IBCRegistrySource).Str("dst", dst).Msg("Downloading IBC registry")
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to download registry: %w", err)
	}
	return nil
}
