package config

import "github.com/spf13/viper"

const allowedOriginsVar = "ALLOWED_ORIGINS"

type Cors struct {
	v *viper.Viper
}

var _ CorsConfig = Cors{}

// GetAllowedOrigins parses the comma-separated ALLOWED_ORIGINS list.
func (c Cors) GetAllowedOrigins() []string {
	return splitList(c.v.GetString(allowedOriginsVar))
}

func (Cors) GetAllowedMethods() []string {
	return []string{"GET", "POST", "DELETE"}
}

func (Cors) GetAllowedHeaders() []string {
	return []string{"Content-Type", "Authorization"}
}
