package config

import "go.uber.org/fx"

// Регистрируем конфиг и политики как fx-провайдеры.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			NewPolicy,
			NewIndicatorConfig,
			NewRiskConfig,
		),
	)
}
