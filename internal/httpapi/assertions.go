package httpapi

import (
	"github.com/tinoosan/finman/internal/storage/memory"
	"github.com/tinoosan/finman/internal/storage/postgres"
	"github.com/tinoosan/finman/internal/storage/sqlite"
)

// Compile-time assertions that every store can back /readyz.
var (
	_ ReadyChecker = (*memory.Store)(nil)
	_ ReadyChecker = (*sqlite.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)
)
