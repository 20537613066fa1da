package crypto

import (
	"github.com/Conte777/ScraperPool/config"
	"go.uber.org/fx"
)

// Module provides the credentials cipher for fx DI
var Module = fx.Module("crypto",
	fx.Provide(func(cfg *config.SecurityConfig) *Cipher {
		return NewCipher(cfg.EncryptionKey)
	}),
)
