package identity

import (
	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (identity.Provider, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewJWTProvider(c.JWTSecret), nil
	})
}
