package stage

import (
	"fmt"
	"path/filepath"

	"tonietool/internal/config"
)

// JobDir returns the job-scoped intermediate directory. Artifacts that must
// survive between stages live here rather than in the per-worker scratch
// directory, since consecutive stages of one job may run on different
// workers.
func JobDir(cfg *config.Config, itemID int64) string {
	return filepath.Join(cfg.Paths.TempDir, fmt.Sprintf("job-%d", itemID))
}
