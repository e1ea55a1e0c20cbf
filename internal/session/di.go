package session

import (
	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/discord"
	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/foxseedlab/tablesession/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, repo, dc, wh), nil
	})
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		repo := do.MustInvoke[repository.Repository](i)
		hub := do.MustInvoke[*broadcast.Hub](i)
		return NewDispatcher(repo, hub), nil
	})
}
