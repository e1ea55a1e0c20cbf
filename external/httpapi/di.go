package httpapi

import (
	"net/http"
	"time"

	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/session"
	"github.com/samber/do/v2"
)

const readHeaderTimeout = 10 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*http.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		router := NewRouter(
			cfg,
			do.MustInvoke[identity.Provider](i),
			do.MustInvoke[*session.Manager](i),
			do.MustInvoke[*session.Dispatcher](i),
			do.MustInvoke[*broadcast.Hub](i),
		)
		return &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		}, nil
	})
}
