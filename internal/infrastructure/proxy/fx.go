package proxy

import (
	"go.uber.org/fx"
)

// Module provides the proxy prober for fx DI
var Module = fx.Module("proxy",
	fx.Provide(NewProber),
)
