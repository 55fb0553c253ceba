package webhook

import "go.uber.org/fx"

var Module = fx.Module("payment.webhook",
	fx.Invoke(registerDispatcher),
)
