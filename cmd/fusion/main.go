package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openmosaic/fusion/internal/common"
	"github.com/openmosaic/fusion/internal/common/app"
	"github.com/openmosaic/fusion/internal/common/health"
	"github.com/openmosaic/fusion/internal/fusion"
	"github.com/openmosaic/fusion/internal/fusion/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.StringSlice(CustomConfigLocation, []string{}, "Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.FusionConfig
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/fusion", userSpecifiedConfigs)

	ctx := app.CreateContextWithShutdown()
	healthChecks := health.NewMultiChecker()
	if err := fusion.Serve(ctx, &config, healthChecks); err != nil {
		log.Fatal(err)
	}
}
